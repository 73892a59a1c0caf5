package models

// Message kinds. A text message carries Content; image and audio messages
// carry a blob reference instead. The combination is validated at the API
// boundary so an image message never carries text-only fields.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageAudio = "audio"
)

// TombstoneContent replaces the body of a message deleted for everyone.
const TombstoneContent = "This message was deleted"

// Message is one entry in a conversation. TS is the creation timestamp in
// UTC nanoseconds; it is authoritative for ordering and for the edit
// window. Messages are never physically deleted.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	ImageRef       string `json:"image_ref,omitempty"`
	AudioRef       string `json:"audio_ref,omitempty"`
	ReplyToID      string `json:"reply_to_id,omitempty"`
	TS             int64  `json:"ts"`

	IsDeleted bool `json:"is_deleted"`
	// DeletedBy holds users who deleted the message locally; each of them
	// no longer sees it, everyone else still does.
	DeletedBy   []string `json:"deleted_by,omitempty"`
	IsPinned    bool     `json:"is_pinned"`
	StarredBy   []string `json:"starred_by,omitempty"`
	IsForwarded bool     `json:"is_forwarded,omitempty"`
	IsEdited    bool     `json:"is_edited,omitempty"`

	// LinkMetadata is patched in asynchronously by the preview worker and
	// cleared again on edit.
	LinkMetadata *LinkMetadata `json:"link_metadata,omitempty"`
}

// LinkMetadata holds Open Graph style data scraped from the first URL in a
// text message.
type LinkMetadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// DeletedFor reports whether userID soft-deleted the message locally.
func (m *Message) DeletedFor(userID string) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// StarredFor reports whether userID starred the message.
func (m *Message) StarredFor(userID string) bool {
	for _, id := range m.StarredBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Reaction is a unique (message, user, emoji) triple. Toggling removes or
// re-adds the row; there is no counter.
type Reaction struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
	TS        int64  `json:"ts"`
}
