package models

// Conversation is either a direct (two-member) chat or a named group.
// For direct conversations there is at most one conversation per unordered
// member pair; dedup is enforced at creation time, not by a constraint.
type Conversation struct {
	ID      string `json:"id"`
	IsGroup bool   `json:"is_group"`
	// Name is set for groups only.
	Name string `json:"name,omitempty"`
	// LastMessageID points at the most recent message; empty until the
	// first send.
	LastMessageID string `json:"last_message_id,omitempty"`
	Theme         string `json:"theme,omitempty"`
	CreatedTS     int64  `json:"created_ts"`
}

// Member links a conversation to a user and carries the member's
// read-tracking pointer. Members are never removed in this system.
type Member struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	// LastReadMessageID is empty when the member has read nothing.
	LastReadMessageID string `json:"last_read_message_id,omitempty"`
	JoinedTS          int64  `json:"joined_ts"`
}

// TypingIndicator is a short-lived per-conversation-per-user flag. Expired
// rows are filtered lazily at read time and overwritten on the next
// keystroke; nothing reaps them.
type TypingIndicator struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	// ExpiresAt is a UTC nanosecond timestamp roughly 3s after the last
	// keystroke signal.
	ExpiresAt int64 `json:"expires_at"`
}
