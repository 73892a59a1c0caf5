package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Fallback limits used when the config leaves rate limiting unset.
const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller key. Authenticated
// callers are keyed by API key; unauthenticated ones by remote IP.
type limiterPool struct {
	mu    sync.Mutex
	pool  map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		pool:  make(map[string]*rate.Limiter),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

// Allow reports whether the caller identified by key may proceed,
// consuming one token from that key's bucket.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.pool[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.pool[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
