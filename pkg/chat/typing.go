package chat

import (
	"errors"
	"time"

	"tarschat/pkg/models"
	"tarschat/pkg/store"
)

// TypingTTL is how long a typing indicator stays visible after the last
// keystroke signal.
const TypingTTL = 3 * time.Second

// SetTyping upserts the caller's typing row with a fresh expiry, or
// removes it when isTyping is false. Unknown identities are ignored.
func SetTyping(subject, conversationID string, isTyping bool) error {
	user, err := ResolveUser(subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated) {
			return nil
		}
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	if !isTyping {
		return store.DeleteTyping(conversationID, user.ID)
	}
	return store.SaveTyping(models.TypingIndicator{
		ConversationID: conversationID,
		UserID:         user.ID,
		ExpiresAt:      now() + int64(TypingTTL),
	})
}

// TypingIndicators returns display names of members currently typing in
// the conversation, excluding the caller. Expired rows are filtered here;
// nothing deletes them eagerly.
func TypingIndicators(conversationID, subject string) ([]string, error) {
	var callerID string
	if u, err := ResolveUser(subject); err == nil {
		callerID = u.ID
	}

	rows, err := store.ListTyping(conversationID)
	if err != nil {
		return nil, err
	}
	ts := now()
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ExpiresAt <= ts || r.UserID == callerID {
			continue
		}
		if u, err := store.GetUser(r.UserID); err == nil {
			names = append(names, u.Name)
		}
	}
	return names, nil
}
