package chat

import (
	"errors"
	"fmt"

	"tarschat/pkg/models"
	"tarschat/pkg/store"
)

// ToggleReaction inserts the unique (message, caller, emoji) row, or
// removes it when already present. Distinct emojis by the same user
// accumulate independently.
func ToggleReaction(subject, messageID, emoji string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	if emoji == "" {
		return fmt.Errorf("empty emoji: %w", ErrInvalidState)
	}
	mu.Lock()
	defer mu.Unlock()

	if _, err := store.GetMessage(messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return err
	}

	if _, err := store.GetReaction(messageID, user.ID, emoji); err == nil {
		return store.DeleteReaction(messageID, user.ID, emoji)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return store.SaveReaction(models.Reaction{
		MessageID: messageID,
		UserID:    user.ID,
		Emoji:     emoji,
		TS:        now(),
	})
}

// GroupReactions projects a message's reactions into emoji groups ordered
// by the first reaction per emoji; user lists keep reaction order.
func GroupReactions(messageID string) ([]ReactionGroup, error) {
	reactions, err := store.ListReactions(messageID)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	groups := make([]ReactionGroup, 0)
	for _, r := range reactions {
		i, ok := idx[r.Emoji]
		if !ok {
			i = len(groups)
			idx[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Users = append(groups[i].Users, r.UserID)
	}
	return groups, nil
}
