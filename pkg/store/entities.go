package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tarschat/pkg/logger"
	"tarschat/pkg/models"
)

// --- users ---

// SaveUser writes the user record and its external-id index entry.
func SaveUser(u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := setRaw(userKey(u.ID), b); err != nil {
		logger.Error("save_user_failed", "user", u.ID, "error", err)
		return err
	}
	if u.Subject != "" {
		if err := setRaw(extidKey(u.Subject), []byte(u.ID)); err != nil {
			logger.Error("save_user_extid_failed", "user", u.ID, "error", err)
			return err
		}
	}
	return nil
}

// GetUser returns the user record for an internal id.
func GetUser(id string) (models.User, error) {
	var u models.User
	b, err := getRaw(userKey(id))
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(b, &u); err != nil {
		return u, fmt.Errorf("invalid user JSON: %w", err)
	}
	return u, nil
}

// GetUserBySubject resolves an external subject identifier to a user.
func GetUserBySubject(subject string) (models.User, error) {
	id, err := getRaw(extidKey(subject))
	if err != nil {
		return models.User{}, err
	}
	return GetUser(string(id))
}

// ListUsers returns all user records.
func ListUsers() ([]models.User, error) {
	var out []models.User
	err := forEachPrefix("user:", func(_ string, v []byte) bool {
		var u models.User
		if json.Unmarshal(v, &u) == nil {
			out = append(out, u)
		}
		return true
	})
	return out, err
}

// --- conversations and members ---

// SaveConversation writes conversation metadata.
func SaveConversation(c models.Conversation) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := setRaw(convKey(c.ID), b); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return err
	}
	return nil
}

// GetConversation returns conversation metadata.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	b, err := getRaw(convKey(id))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("invalid conversation JSON: %w", err)
	}
	return c, nil
}

// SaveMember writes a membership row and its per-user index entry.
func SaveMember(m models.Member) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	if err := setRaw(memberKey(m.ConversationID, m.UserID), b); err != nil {
		return err
	}
	return setRaw(umemberKey(m.UserID, m.ConversationID), nil)
}

// GetMember returns the membership row for (conversation, user).
func GetMember(convID, userID string) (models.Member, error) {
	var m models.Member
	b, err := getRaw(memberKey(convID, userID))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("invalid member JSON: %w", err)
	}
	return m, nil
}

// ListMembers returns all members of a conversation.
func ListMembers(convID string) ([]models.Member, error) {
	var out []models.Member
	err := forEachPrefix("member:"+convID+":", func(_ string, v []byte) bool {
		var m models.Member
		if json.Unmarshal(v, &m) == nil {
			out = append(out, m)
		}
		return true
	})
	return out, err
}

// ListUserConversationIDs returns the ids of every conversation the user
// belongs to.
func ListUserConversationIDs(userID string) ([]string, error) {
	prefix := "umember:" + userID + ":"
	var out []string
	err := forEachPrefix(prefix, func(k string, _ []byte) bool {
		out = append(out, strings.TrimPrefix(k, prefix))
		return true
	})
	return out, err
}

// --- messages ---

// CreateMessage appends a message under a creation-ordered key and indexes
// it by id for later mutation.
func CreateMessage(m models.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	key := msgKey(m.ConversationID, m.TS)
	if err := setRaw(key, b); err != nil {
		logger.Error("save_message_failed", "conversation", m.ConversationID, "key", key, "error", err)
		return err
	}
	if err := setRaw(msgidKey(m.ID), []byte(key)); err != nil {
		logger.Error("save_message_index_failed", "msg_id", m.ID, "error", err)
		return err
	}
	logger.Debug("message_saved", "conversation", m.ConversationID, "msg_id", m.ID)
	return nil
}

// UpdateMessage overwrites an existing message in place, keeping its
// creation-ordered key.
func UpdateMessage(m models.Message) error {
	key, err := getRaw(msgidKey(m.ID))
	if err != nil {
		return err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return setRaw(string(key), b)
}

// GetMessage returns a message by id.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	key, err := getRaw(msgidKey(id))
	if err != nil {
		return m, err
	}
	b, err := getRaw(string(key))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("invalid message JSON: %w", err)
	}
	return m, nil
}

// ListConversationMessages returns all messages of a conversation in
// creation order.
func ListConversationMessages(convID string) ([]models.Message, error) {
	var out []models.Message
	err := forEachPrefix(msgPrefix(convID), func(_ string, v []byte) bool {
		var m models.Message
		if json.Unmarshal(v, &m) == nil {
			out = append(out, m)
		}
		return true
	})
	return out, err
}

// ListConversationMessagesDesc returns up to limit messages in reverse
// creation order, starting strictly before the message key encoded in
// cursor (all of them when cursor is empty). The second return value is
// the storage key of the last message returned, usable as the next cursor.
func ListConversationMessagesDesc(convID, cursor string, limit int) ([]models.Message, string, error) {
	var out []models.Message
	var lastKey string
	err := forEachPrefixDesc(msgPrefix(convID), cursor, func(k string, v []byte) bool {
		var m models.Message
		if json.Unmarshal(v, &m) != nil {
			return true
		}
		out = append(out, m)
		lastKey = k
		return limit <= 0 || len(out) < limit
	})
	return out, lastKey, err
}

// --- reactions ---

// SaveReaction writes the unique (message, user, emoji) row.
func SaveReaction(r models.Reaction) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reaction: %w", err)
	}
	return setRaw(reactKey(r.MessageID, r.UserID, r.Emoji), b)
}

// GetReaction looks up the unique (message, user, emoji) row.
func GetReaction(msgID, userID, emoji string) (models.Reaction, error) {
	var r models.Reaction
	b, err := getRaw(reactKey(msgID, userID, emoji))
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("invalid reaction JSON: %w", err)
	}
	return r, nil
}

// DeleteReaction removes the unique (message, user, emoji) row.
func DeleteReaction(msgID, userID, emoji string) error {
	return deleteRaw(reactKey(msgID, userID, emoji))
}

// ListReactions returns all reactions for a message ordered by creation
// time, so read-time grouping preserves first-reaction order per emoji.
func ListReactions(msgID string) ([]models.Reaction, error) {
	var out []models.Reaction
	err := forEachPrefix(reactPrefix(msgID), func(_ string, v []byte) bool {
		var r models.Reaction
		if json.Unmarshal(v, &r) == nil {
			out = append(out, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out, nil
}

// --- typing indicators ---

// SaveTyping upserts the (conversation, user) typing row.
func SaveTyping(t models.TypingIndicator) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal typing indicator: %w", err)
	}
	return setRaw(typingKey(t.ConversationID, t.UserID), b)
}

// DeleteTyping removes the (conversation, user) typing row if present.
func DeleteTyping(convID, userID string) error {
	return deleteRaw(typingKey(convID, userID))
}

// ListTyping returns all typing rows for a conversation, expired ones
// included; callers filter by ExpiresAt.
func ListTyping(convID string) ([]models.TypingIndicator, error) {
	var out []models.TypingIndicator
	err := forEachPrefix(typingPrefix(convID), func(_ string, v []byte) bool {
		var t models.TypingIndicator
		if json.Unmarshal(v, &t) == nil {
			out = append(out, t)
		}
		return true
	})
	return out, err
}

// --- blobs ---

// BlobMeta describes an uploaded blob.
type BlobMeta struct {
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	CreatedTS   int64  `json:"created_ts"`
}

// SaveBlob stores blob bytes and metadata under an opaque reference.
func SaveBlob(ref string, meta BlobMeta, data []byte) error {
	mb, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal blob meta: %w", err)
	}
	if err := setRaw(blobMetaKey(ref), mb); err != nil {
		return err
	}
	return setRaw(blobDataKey(ref), data)
}

// GetBlob returns blob metadata and bytes for a reference.
func GetBlob(ref string) (BlobMeta, []byte, error) {
	var meta BlobMeta
	mb, err := getRaw(blobMetaKey(ref))
	if err != nil {
		return meta, nil, err
	}
	if err := json.Unmarshal(mb, &meta); err != nil {
		return meta, nil, fmt.Errorf("invalid blob meta JSON: %w", err)
	}
	data, err := getRaw(blobDataKey(ref))
	if err != nil {
		return meta, nil, err
	}
	return meta, data, nil
}

// HasBlob reports whether a blob reference exists.
func HasBlob(ref string) bool {
	_, err := getRaw(blobMetaKey(ref))
	return err == nil
}
