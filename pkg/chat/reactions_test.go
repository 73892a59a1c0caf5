package chat

import (
	"errors"
	"testing"

	"tarschat/pkg/models"
)

func TestToggleReactionRoundTrip(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	id, _ := Send("subj_a", SendRequest{ConversationID: convID, Type: models.MessageText, Content: "x"})

	if err := ToggleReaction("subj_b", id, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	groups, err := GroupReactions(id)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 1 || groups[0].Emoji != "👍" || len(groups[0].Users) != 1 {
		t.Fatalf("groups = %+v", groups)
	}

	// second toggle removes
	if err := ToggleReaction("subj_b", id, "👍"); err != nil {
		t.Fatalf("unreact: %v", err)
	}
	groups, _ = GroupReactions(id)
	if len(groups) != 0 {
		t.Fatalf("reaction survived the second toggle: %+v", groups)
	}
}

func TestReactionsPerEmojiAreIndependent(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	id, _ := Send("subj_a", SendRequest{ConversationID: convID, Type: models.MessageText, Content: "x"})

	if err := ToggleReaction("subj_b", id, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if err := ToggleReaction("subj_b", id, "🔥"); err != nil {
		t.Fatalf("react: %v", err)
	}
	groups, _ := GroupReactions(id)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}

	// removing one leaves the other
	if err := ToggleReaction("subj_b", id, "👍"); err != nil {
		t.Fatalf("unreact: %v", err)
	}
	groups, _ = GroupReactions(id)
	if len(groups) != 1 || groups[0].Emoji != "🔥" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestGroupReactionsCollectsUsers(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	provision(t, "subj_c", "Cara")
	id, _ := Send("subj_a", SendRequest{ConversationID: convID, Type: models.MessageText, Content: "x"})

	for _, subj := range []string{"subj_a", "subj_b", "subj_c"} {
		if err := ToggleReaction(subj, id, "❤️"); err != nil {
			t.Fatalf("react %s: %v", subj, err)
		}
	}
	groups, _ := GroupReactions(id)
	if len(groups) != 1 || len(groups[0].Users) != 3 {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestReactionOnUnknownMessage(t *testing.T) {
	openTestStore(t)
	provision(t, "subj_a", "Alice")
	if err := ToggleReaction("subj_a", "msg_missing", "👍"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyEmojiRejected(t *testing.T) {
	openTestStore(t)
	convID := newDirect(t)
	id, _ := Send("subj_a", SendRequest{ConversationID: convID, Type: models.MessageText, Content: "x"})
	if err := ToggleReaction("subj_a", id, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
