package chat

import (
	"errors"
	"testing"
	"time"
)

func TestUpdatePresenceLazyCreate(t *testing.T) {
	openTestStore(t)

	u, err := UpdatePresence("subj_a", PresenceUpdate{Name: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("update presence: %v", err)
	}
	if u.ID == "" || u.Name != "Alice" || !u.IsOnline || u.LastSeen == 0 {
		t.Fatalf("unexpected user %+v", u)
	}

	// second ping keeps the same record and refreshes last seen
	u2, err := UpdatePresence("subj_a", PresenceUpdate{})
	if err != nil {
		t.Fatalf("second presence: %v", err)
	}
	if u2.ID != u.ID {
		t.Fatalf("presence created a second user: %s vs %s", u2.ID, u.ID)
	}
	if u2.Name != "Alice" {
		t.Fatalf("empty claims overwrote profile: %+v", u2)
	}
}

func TestUpdatePresenceRequiresSubject(t *testing.T) {
	openTestStore(t)
	if _, err := UpdatePresence("", PresenceUpdate{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSetOfflineUnknownSubjectIsNoop(t *testing.T) {
	openTestStore(t)
	if err := SetOffline("never-seen"); err != nil {
		t.Fatalf("expected nil for unknown subject, got %v", err)
	}
}

func TestSetOffline(t *testing.T) {
	openTestStore(t)
	provision(t, "subj_a", "Alice")
	if _, err := UpdatePresence("subj_a", PresenceUpdate{}); err != nil {
		t.Fatalf("presence: %v", err)
	}
	if err := SetOffline("subj_a"); err != nil {
		t.Fatalf("offline: %v", err)
	}
	u, err := ResolveUser("subj_a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.IsOnline {
		t.Fatal("user still online after SetOffline")
	}
}

func TestProvisionUserIdempotent(t *testing.T) {
	openTestStore(t)
	id := provision(t, "subj_a", "Alice")

	// redelivery patches instead of duplicating
	if err := ProvisionUser("subj_a", "Alice Smith", "", "https://img.example/a.png"); err != nil {
		t.Fatalf("second provision: %v", err)
	}
	u, err := ResolveUser("subj_a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != id {
		t.Fatalf("provision duplicated user: %s vs %s", u.ID, id)
	}
	if u.Name != "Alice Smith" || u.ImageURL != "https://img.example/a.png" {
		t.Fatalf("patch not applied: %+v", u)
	}
	if u.Email != "subj_a@example.com" {
		t.Fatalf("empty claim overwrote email: %q", u.Email)
	}
}

func TestPatchUserUnknownSubject(t *testing.T) {
	openTestStore(t)
	if err := PatchUser("ghost", "Name", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsersExcludesCaller(t *testing.T) {
	openTestStore(t)
	provision(t, "subj_a", "Alice")
	provision(t, "subj_b", "Bob")
	provision(t, "subj_c", "Cara")

	users, err := ListUsers("subj_b")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.Subject == "subj_b" {
			t.Fatal("caller present in directory listing")
		}
	}
}

func TestSweepPresence(t *testing.T) {
	openTestStore(t)
	base := freezeClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	provision(t, "subj_a", "Alice")
	if _, err := UpdatePresence("subj_a", PresenceUpdate{}); err != nil {
		t.Fatalf("presence: %v", err)
	}

	advanceClock(base, 10*time.Minute)
	provision(t, "subj_b", "Bob")
	if _, err := UpdatePresence("subj_b", PresenceUpdate{}); err != nil {
		t.Fatalf("presence: %v", err)
	}

	// cutoff between the two heartbeats flips only the stale user
	cutoff := base + int64(5*time.Minute)
	n, err := SweepPresence(cutoff)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	a, _ := ResolveUser("subj_a")
	b, _ := ResolveUser("subj_b")
	if a.IsOnline {
		t.Fatal("stale user still online")
	}
	if !b.IsOnline {
		t.Fatal("fresh user flipped offline")
	}
}
