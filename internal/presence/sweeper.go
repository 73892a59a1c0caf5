// Package presence runs the background sweep that flips users offline
// when their last heartbeat is older than the configured window.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"tarschat/pkg/chat"
	"tarschat/pkg/config"
	"tarschat/pkg/logger"
)

// DefaultOfflineAfter is the heartbeat staleness cutoff when none is
// configured.
const DefaultOfflineAfter = 5 * time.Minute

// Start starts the presence sweep scheduler if enabled. Returns a cancel
// func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	p := eff.Config.Presence

	if !p.SweepEnabled {
		logger.Info("presence_sweep_disabled")
		return func() {}, nil
	}

	// map empty cron to every minute
	cronExpr := p.SweepCron
	if cronExpr == "" {
		cronExpr = "* * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("presence_invalid_cron", "cron", p.SweepCron)
		return nil, fmt.Errorf("invalid presence sweep cron expression: %s", p.SweepCron)
	}

	offlineAfter := time.Duration(p.OfflineAfter)
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}

	logger.Info("presence_sweep_enabled", "cron", cronExpr, "offline_after", offlineAfter.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, offlineAfter)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string, offlineAfter time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("presence_sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("presence_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("presence_sweep_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runOnce(offlineAfter)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("presence_sweep_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runOnce(offlineAfter)
		case <-ctx.Done():
			logger.Info("presence_sweep_stopping")
			return
		}
	}
}

func runOnce(offlineAfter time.Duration) {
	cutoff := time.Now().UTC().Add(-offlineAfter).UnixNano()
	if _, err := chat.SweepPresence(cutoff); err != nil {
		logger.Error("presence_sweep_error", "error", err)
	}
}
