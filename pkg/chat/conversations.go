package chat

import (
	"errors"
	"fmt"
	"sort"

	"tarschat/pkg/logger"
	"tarschat/pkg/models"
	"tarschat/pkg/store"
	"tarschat/pkg/utils"
)

// MemberProfile is a user profile enriched with that member's read
// pointer, as shown in conversation rosters.
type MemberProfile struct {
	models.User
	LastReadMessageID string `json:"last_read_message_id,omitempty"`
}

// ConversationView is the per-caller projection returned by
// ListConversations.
type ConversationView struct {
	models.Conversation
	// OtherMember is the peer for direct conversations.
	OtherMember *MemberProfile `json:"other_member,omitempty"`
	// Participants holds every member except the caller.
	Participants []MemberProfile `json:"participants"`
	MemberCount  int             `json:"member_count"`
	LastMessage  *models.Message `json:"last_message,omitempty"`
	UnreadCount  int             `json:"unread_count"`
}

// CreateOrGetDirectConversation returns the existing direct conversation
// between the caller and participant, or creates one. Group conversations
// never satisfy the dedup scan even when their membership matches the
// pair.
func CreateOrGetDirectConversation(subject, participantID string) (string, error) {
	caller, err := ResolveUser(subject)
	if err != nil {
		return "", err
	}
	if _, err := store.GetUser(participantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
		}
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()

	convIDs, err := store.ListUserConversationIDs(caller.ID)
	if err != nil {
		return "", err
	}
	for _, cid := range convIDs {
		if _, err := store.GetMember(cid, participantID); err != nil {
			continue
		}
		conv, err := store.GetConversation(cid)
		if err != nil || conv.IsGroup {
			continue
		}
		return cid, nil
	}

	conv := models.Conversation{
		ID:        utils.GenConversationID(),
		IsGroup:   false,
		CreatedTS: now(),
	}
	if err := store.SaveConversation(conv); err != nil {
		return "", err
	}
	for _, uid := range []string{caller.ID, participantID} {
		m := models.Member{ConversationID: conv.ID, UserID: uid, JoinedTS: conv.CreatedTS}
		if err := store.SaveMember(m); err != nil {
			return "", err
		}
	}
	logger.Info("direct_conversation_created", "conversation", conv.ID, "caller", caller.ID, "participant", participantID)
	return conv.ID, nil
}

// CreateGroup creates a named group conversation containing the caller
// and every participant. Duplicate participant ids collapse into one
// membership row.
func CreateGroup(subject, name string, participantIDs []string) (string, error) {
	caller, err := ResolveUser(subject)
	if err != nil {
		return "", err
	}
	for _, pid := range participantIDs {
		if _, err := store.GetUser(pid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("participant %s: %w", pid, ErrNotFound)
			}
			return "", err
		}
	}

	mu.Lock()
	defer mu.Unlock()

	conv := models.Conversation{
		ID:        utils.GenConversationID(),
		IsGroup:   true,
		Name:      name,
		CreatedTS: now(),
	}
	if err := store.SaveConversation(conv); err != nil {
		return "", err
	}
	seen := map[string]struct{}{}
	for _, uid := range append(append([]string{}, participantIDs...), caller.ID) {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		m := models.Member{ConversationID: conv.ID, UserID: uid, JoinedTS: conv.CreatedTS}
		if err := store.SaveMember(m); err != nil {
			return "", err
		}
	}
	logger.Info("group_created", "conversation", conv.ID, "name", name, "members", len(seen))
	return conv.ID, nil
}

// ListConversations returns all of the caller's conversations with peer
// profiles, the last message and an unread count. Unknown identities get
// an empty list. Ordering is deterministic: last-message time descending,
// then conversation creation time descending, then id.
func ListConversations(subject string) ([]ConversationView, error) {
	user, err := ResolveUser(subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthenticated) {
			return []ConversationView{}, nil
		}
		return nil, err
	}

	convIDs, err := store.ListUserConversationIDs(user.ID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(convIDs))
	for _, cid := range convIDs {
		conv, err := store.GetConversation(cid)
		if err != nil {
			continue
		}
		members, err := store.ListMembers(cid)
		if err != nil {
			return nil, err
		}

		var self models.Member
		others := make([]MemberProfile, 0, len(members))
		for _, m := range members {
			if m.UserID == user.ID {
				self = m
				continue
			}
			u, err := store.GetUser(m.UserID)
			if err != nil {
				continue
			}
			others = append(others, MemberProfile{User: u, LastReadMessageID: m.LastReadMessageID})
		}

		var last *models.Message
		if conv.LastMessageID != "" {
			if m, err := store.GetMessage(conv.LastMessageID); err == nil {
				last = &m
			}
		}

		unread, err := unreadCount(conv.ID, user.ID, self.LastReadMessageID)
		if err != nil {
			return nil, err
		}

		view := ConversationView{
			Conversation: conv,
			Participants: others,
			MemberCount:  len(members),
			LastMessage:  last,
			UnreadCount:  unread,
		}
		if !conv.IsGroup && len(others) > 0 {
			view.OtherMember = &others[0]
		}
		out = append(out, view)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := viewSortTS(out[i]), viewSortTS(out[j])
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func viewSortTS(v ConversationView) int64 {
	if v.LastMessage != nil {
		return v.LastMessage.TS
	}
	return v.CreatedTS
}

// unreadCount counts messages newer than the member's last-read message
// and not sent by the member themself. An empty pointer counts everything.
func unreadCount(convID, userID, lastReadID string) (int, error) {
	var lastReadTS int64
	if lastReadID != "" {
		if m, err := store.GetMessage(lastReadID); err == nil {
			lastReadTS = m.TS
		}
	}
	msgs, err := store.ListConversationMessages(convID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if m.TS > lastReadTS && m.SenderID != userID {
			n++
		}
	}
	return n, nil
}

// MarkRead advances the caller's read pointer to the conversation's last
// message. Writes are skipped when the pointer is already current.
func MarkRead(subject, conversationID string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	conv, err := store.GetConversation(conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	member, err := store.GetMember(conversationID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("not a member of %s: %w", conversationID, ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if member.LastReadMessageID == conv.LastMessageID {
		return nil
	}
	member.LastReadMessageID = conv.LastMessageID
	return store.SaveMember(member)
}

// SetTheme updates the conversation's theme tag. The caller must be a
// member.
func SetTheme(subject, conversationID, theme string) error {
	user, err := ResolveUser(subject)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	conv, err := store.GetConversation(conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if _, err := store.GetMember(conversationID, user.ID); err != nil {
		return fmt.Errorf("not a member of %s: %w", conversationID, ErrUnauthorized)
	}
	conv.Theme = theme
	return store.SaveConversation(conv)
}
