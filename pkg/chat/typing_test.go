package chat

import (
	"testing"
	"time"
)

func TestTypingIndicatorLifecycle(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	base := freezeClock(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	if err := SetTyping("subj_b", convID, true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	names, err := TypingIndicators(convID, "subj_a")
	if err != nil {
		t.Fatalf("indicators: %v", err)
	}
	if len(names) != 1 || names[0] != "Bob" {
		t.Fatalf("names = %v", names)
	}

	// indicator evaporates after the TTL without any explicit clear
	advanceClock(base, TypingTTL+time.Millisecond)
	names, _ = TypingIndicators(convID, "subj_a")
	if len(names) != 0 {
		t.Fatalf("expired indicator still visible: %v", names)
	}
}

func TestTypingExcludesCaller(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	freezeClock(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	if err := SetTyping("subj_a", convID, true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	names, _ := TypingIndicators(convID, "subj_a")
	if len(names) != 0 {
		t.Fatalf("caller sees their own indicator: %v", names)
	}
	names, _ = TypingIndicators(convID, "subj_b")
	if len(names) != 1 || names[0] != "Alice" {
		t.Fatalf("peer view = %v", names)
	}
}

func TestTypingFalseRemoves(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	freezeClock(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	if err := SetTyping("subj_b", convID, true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	if err := SetTyping("subj_b", convID, false); err != nil {
		t.Fatalf("clear typing: %v", err)
	}
	names, _ := TypingIndicators(convID, "subj_a")
	if len(names) != 0 {
		t.Fatalf("cleared indicator still visible: %v", names)
	}
}

func TestTypingRefreshExtendsExpiry(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	base := freezeClock(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	if err := SetTyping("subj_b", convID, true); err != nil {
		t.Fatalf("set typing: %v", err)
	}
	advanceClock(base, 2*time.Second)
	if err := SetTyping("subj_b", convID, true); err != nil {
		t.Fatalf("refresh typing: %v", err)
	}
	// past the first deadline but inside the refreshed one
	advanceClock(base, 4*time.Second)
	names, _ := TypingIndicators(convID, "subj_a")
	if len(names) != 1 {
		t.Fatalf("refreshed indicator expired early: %v", names)
	}
}

func TestTypingUnknownSubjectIsNoop(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	if err := SetTyping("never-seen", convID, true); err != nil {
		t.Fatalf("unknown subject: %v", err)
	}
	names, _ := TypingIndicators(convID, "subj_a")
	if len(names) != 0 {
		t.Fatalf("phantom indicator: %v", names)
	}
}
