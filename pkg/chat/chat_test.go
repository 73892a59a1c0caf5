package chat

import (
	"testing"
	"time"

	"tarschat/pkg/store"
)

// openTestStore opens a fresh pebble store for one test and restores the
// package clock and preview hook afterwards.
func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	prevNow := now
	prevSched := ScheduleLinkPreview
	ScheduleLinkPreview = nil
	t.Cleanup(func() {
		now = prevNow
		ScheduleLinkPreview = prevSched
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
}

// provision creates a user for the given subject and returns its id.
func provision(t *testing.T, subject, name string) string {
	t.Helper()
	if err := ProvisionUser(subject, name, subject+"@example.com", ""); err != nil {
		t.Fatalf("provision %s: %v", subject, err)
	}
	u, err := ResolveUser(subject)
	if err != nil {
		t.Fatalf("resolve %s: %v", subject, err)
	}
	return u.ID
}

// freezeClock pins the package clock to a fixed instant and returns it.
func freezeClock(t *testing.T, at time.Time) int64 {
	t.Helper()
	ts := at.UTC().UnixNano()
	now = func() int64 { return ts }
	return ts
}

// advanceClock moves the frozen clock forward.
func advanceClock(base int64, d time.Duration) {
	ts := base + int64(d)
	now = func() int64 { return ts }
}
