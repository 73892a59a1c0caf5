package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"tarschat/pkg/blob"
	"tarschat/pkg/logger"
	"tarschat/pkg/models"
	"tarschat/pkg/store"
	"tarschat/pkg/utils"
	"tarschat/pkg/validation"
)

// EditWindow bounds how long after sending a text message may be edited.
const EditWindow = 5 * time.Minute

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ScheduleLinkPreview, when set, is invoked fire-and-forget with the id of
// a freshly sent text message and the first URL found in its content.
// Scheduling failures are logged and never fail the send.
var ScheduleLinkPreview func(messageID, url string) error

// SendRequest is the discriminated send payload. Text requires Content;
// image and audio require a previously issued blob reference.
type SendRequest struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ImageRef       string `json:"image_ref,omitempty"`
	AudioRef       string `json:"audio_ref,omitempty"`
	ReplyToID      string `json:"reply_to_id,omitempty"`
	IsForwarded    bool   `json:"is_forwarded,omitempty"`
}

// Send creates a message, advances the conversation's last-message
// pointer and, for text containing a URL, schedules link-preview
// enrichment.
func Send(subject string, req SendRequest) (string, error) {
	user, err := ResolveUser(subject)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateSend(req.Type, req.Content, req.ImageRef, req.AudioRef); err != nil {
		return "", err
	}

	mu.Lock()
	conv, err := store.GetConversation(req.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		mu.Unlock()
		return "", fmt.Errorf("conversation %s: %w", req.ConversationID, ErrNotFound)
	}
	if err != nil {
		mu.Unlock()
		return "", err
	}

	m := models.Message{
		ID:             utils.GenMessageID(),
		ConversationID: conv.ID,
		SenderID:       user.ID,
		Type:           req.Type,
		Content:        req.Content,
		ImageRef:       req.ImageRef,
		AudioRef:       req.AudioRef,
		ReplyToID:      req.ReplyToID,
		IsForwarded:    req.IsForwarded,
		TS:             now(),
	}
	if err := store.CreateMessage(m); err != nil {
		mu.Unlock()
		return "", err
	}
	conv.LastMessageID = m.ID
	if err := store.SaveConversation(conv); err != nil {
		mu.Unlock()
		return "", err
	}
	mu.Unlock()

	if m.Type == models.MessageText && m.Content != "" {
		if u := urlPattern.FindString(m.Content); u != "" && ScheduleLinkPreview != nil {
			if err := ScheduleLinkPreview(m.ID, u); err != nil {
				logger.Warn("link_preview_schedule_failed", "msg_id", m.ID, "error", err)
			}
		}
	}

	logger.Info("message_sent", "conversation", conv.ID, "msg_id", m.ID, "type", m.Type)
	return m.ID, nil
}

// Edit replaces a text message's content within the edit window. Any
// stale link preview is cleared; the enricher is not re-run.
func Edit(subject, messageID, content string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	m, err := store.GetMessage(messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if m.SenderID != user.ID {
		return fmt.Errorf("only the sender may edit: %w", ErrUnauthorized)
	}
	if m.Type != models.MessageText {
		return fmt.Errorf("only text messages can be edited: %w", ErrInvalidState)
	}
	if now()-m.TS > int64(EditWindow) {
		return fmt.Errorf("message older than %s: %w", EditWindow, ErrEditWindowExpired)
	}
	m.Content = content
	m.IsEdited = true
	m.LinkMetadata = nil
	return store.UpdateMessage(m)
}

// Delete scopes.
const (
	DeleteForEveryone = "everyone"
	DeleteForMe       = "me"
)

// Delete removes a message for everyone (sender only; content replaced by
// a tombstone) or just for the caller (idempotent deletedBy append).
func Delete(subject, messageID, scope string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	m, err := store.GetMessage(messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	switch scope {
	case DeleteForEveryone:
		if m.SenderID != user.ID {
			return fmt.Errorf("only the sender may delete for everyone: %w", ErrUnauthorized)
		}
		m.IsDeleted = true
		m.Content = models.TombstoneContent
		return store.UpdateMessage(m)
	case DeleteForMe:
		if m.DeletedFor(user.ID) {
			return nil
		}
		m.DeletedBy = append(m.DeletedBy, user.ID)
		return store.UpdateMessage(m)
	default:
		return fmt.Errorf("unknown delete scope %q: %w", scope, ErrInvalidState)
	}
}

// TogglePin flips a message's pinned flag. The caller must be a member of
// the owning conversation.
func TogglePin(subject, messageID string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	m, err := store.GetMessage(messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if _, err := store.GetMember(m.ConversationID, user.ID); err != nil {
		return fmt.Errorf("not a member of %s: %w", m.ConversationID, ErrUnauthorized)
	}
	m.IsPinned = !m.IsPinned
	return store.UpdateMessage(m)
}

// ToggleStar adds or removes the caller's personal star on a message.
func ToggleStar(subject, messageID string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	m, err := store.GetMessage(messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if m.StarredFor(user.ID) {
		kept := m.StarredBy[:0]
		for _, id := range m.StarredBy {
			if id != user.ID {
				kept = append(kept, id)
			}
		}
		m.StarredBy = kept
	} else {
		m.StarredBy = append(m.StarredBy, user.ID)
	}
	return store.UpdateMessage(m)
}

// PatchLinkMetadata attaches scraped link metadata to a message. It is
// called only by the preview worker; a concurrent delete or edit may win,
// which is acceptable for best-effort enrichment.
func PatchLinkMetadata(messageID string, md models.LinkMetadata) error {
	mu.Lock()
	defer mu.Unlock()
	m, err := store.GetMessage(messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	m.LinkMetadata = &md
	return store.UpdateMessage(m)
}

// ReactionGroup is the read-time projection of reactions on a message:
// emoji mapped to the users who reacted, ordered by first reaction.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// ReplyView is the preview of a quoted message.
type ReplyView struct {
	models.Message
	Sender *models.User `json:"sender,omitempty"`
}

// MessageView is a message enriched for display.
type MessageView struct {
	models.Message
	Sender       *models.User    `json:"sender,omitempty"`
	Reactions    []ReactionGroup `json:"reactions"`
	ImageURL     string          `json:"image_url,omitempty"`
	AudioURL     string          `json:"audio_url,omitempty"`
	ReplyMessage *ReplyView      `json:"reply_message,omitempty"`
}

// ListMessages returns all messages of a conversation in creation order,
// excluding those the caller deleted locally, each enriched with sender,
// grouped reactions, attachment URLs and the reply preview.
func ListMessages(subject, conversationID string) ([]MessageView, error) {
	user, err := ResolveUser(subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated) {
			return []MessageView{}, nil
		}
		return nil, err
	}
	msgs, err := store.ListConversationMessages(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		if m.DeletedFor(user.ID) {
			continue
		}
		v, err := enrich(m, user.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// MessagePage is one page of the newest-first paginated listing. The
// cursor is opaque; pass it back verbatim to continue.
type MessagePage struct {
	Messages       []MessageView `json:"messages"`
	ContinueCursor string        `json:"continue_cursor,omitempty"`
	IsDone         bool          `json:"is_done"`
}

// ListMessagesPaginated returns up to limit messages in reverse creation
// order starting after the opaque cursor.
func ListMessagesPaginated(subject, conversationID, cursor string, limit int) (MessagePage, error) {
	user, err := ResolveUser(subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated) {
			return MessagePage{Messages: []MessageView{}, IsDone: true}, nil
		}
		return MessagePage{}, err
	}
	if limit <= 0 {
		limit = 50
	}
	var before string
	if cursor != "" {
		b, err := base64.URLEncoding.DecodeString(cursor)
		if err != nil {
			return MessagePage{}, fmt.Errorf("bad cursor: %w", ErrInvalidState)
		}
		before = string(b)
	}

	msgs, lastKey, err := store.ListConversationMessagesDesc(conversationID, before, limit)
	if err != nil {
		return MessagePage{}, err
	}
	page := MessagePage{Messages: make([]MessageView, 0, len(msgs))}
	for _, m := range msgs {
		if m.DeletedFor(user.ID) {
			continue
		}
		v, err := enrich(m, user.ID)
		if err != nil {
			return MessagePage{}, err
		}
		page.Messages = append(page.Messages, v)
	}
	if len(msgs) < limit {
		page.IsDone = true
	} else if lastKey != "" {
		page.ContinueCursor = base64.URLEncoding.EncodeToString([]byte(lastKey))
	}
	return page, nil
}

// ListPinned returns pinned messages in creation order, excluding those
// the caller deleted locally.
func ListPinned(subject, conversationID string) ([]MessageView, error) {
	user, err := ResolveUser(subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated) {
			return []MessageView{}, nil
		}
		return nil, err
	}
	msgs, err := store.ListConversationMessages(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0)
	for _, m := range msgs {
		if !m.IsPinned || m.DeletedFor(user.ID) {
			continue
		}
		v := MessageView{Message: m, Reactions: []ReactionGroup{}}
		if s, err := store.GetUser(m.SenderID); err == nil {
			v.Sender = &s
		}
		out = append(out, v)
	}
	return out, nil
}

// enrich resolves the per-caller display projection of one message.
func enrich(m models.Message, callerID string) (MessageView, error) {
	v := MessageView{Message: m, Reactions: []ReactionGroup{}}
	if s, err := store.GetUser(m.SenderID); err == nil {
		v.Sender = &s
	}
	groups, err := GroupReactions(m.ID)
	if err != nil {
		return v, err
	}
	v.Reactions = groups
	if m.ImageRef != "" {
		v.ImageURL = blob.URL(m.ImageRef)
	}
	if m.AudioRef != "" {
		v.AudioURL = blob.URL(m.AudioRef)
	}
	if m.ReplyToID != "" {
		if orig, err := store.GetMessage(m.ReplyToID); err == nil {
			if !orig.IsDeleted && !orig.DeletedFor(callerID) {
				rv := ReplyView{Message: orig}
				if s, err := store.GetUser(orig.SenderID); err == nil {
					rv.Sender = &s
				}
				v.ReplyMessage = &rv
			}
		}
	}
	return v, nil
}
