package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tarschat/pkg/chat"
	"tarschat/pkg/utils"
	"tarschat/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterConversations registers conversation-scoped routes onto the
// signed subrouter.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations/direct", createDirect).Methods(http.MethodPost)
	r.HandleFunc("/conversations/group", createGroup).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", markRead).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/theme", setTheme).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id}/typing", setTyping).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/typing", listTyping).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages/pinned", listPinned).Methods(http.MethodGet)
}

// createDirect handles POST /conversations/direct. Returns the existing
// direct conversation with the participant when one exists.
func createDirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		ParticipantID string `json:"participant_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ParticipantID == "" {
		utils.JSONError(w, http.StatusBadRequest, "participant_id is required")
		return
	}
	id, err := chat.CreateOrGetDirectConversation(subject, body.ParticipantID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"conversation_id": id})
}

// createGroup handles POST /conversations/group.
func createGroup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Name           string   `json:"name"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := validation.ValidateGroupName(body.Name); err != nil {
		writeChatError(w, err)
		return
	}
	id, err := chat.CreateGroup(subject, body.Name, body.ParticipantIDs)
	if err != nil {
		writeChatError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"conversation_id": id})
}

// listConversations handles GET /conversations. Unknown callers get an
// empty list.
func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject := queryCaller(r)
	out := []chat.ConversationView{}
	if subject != "" {
		views, err := chat.ListConversations(subject)
		if err != nil {
			writeChatError(w, err)
			return
		}
		if views != nil {
			out = views
		}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Conversations []chat.ConversationView `json:"conversations"`
	}{Conversations: out})
}

// markRead handles POST /conversations/{id}/read, advancing the caller's
// read pointer to the newest message.
func markRead(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	if err := chat.MarkRead(subject, mux.Vars(r)["id"]); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// setTheme handles PUT /conversations/{id}/theme.
func setTheme(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Theme string `json:"theme"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := chat.SetTheme(subject, mux.Vars(r)["id"], body.Theme); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// setTyping handles POST /conversations/{id}/typing.
func setTyping(w http.ResponseWriter, r *http.Request) {
	subject := queryCaller(r)
	var body struct {
		IsTyping bool `json:"is_typing"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	// unknown identities are a silent no-op
	if err := chat.SetTyping(subject, mux.Vars(r)["id"], body.IsTyping); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listTyping handles GET /conversations/{id}/typing, returning the
// display names of members currently typing, excluding the caller.
func listTyping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject := queryCaller(r)
	names, err := chat.TypingIndicators(mux.Vars(r)["id"], subject)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Typing []string `json:"typing"`
	}{Typing: names})
}

// listMessages handles GET /conversations/{id}/messages. With a cursor
// or limit it returns a page in descending order; without either it
// returns the full ascending history.
func listMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject := queryCaller(r)
	convID := mux.Vars(r)["id"]

	cursor := r.URL.Query().Get("cursor")
	limStr := r.URL.Query().Get("limit")
	if cursor != "" || limStr != "" {
		limit := 0
		if limStr != "" {
			if n, err := strconv.Atoi(limStr); err == nil && n > 0 {
				limit = n
			}
		}
		page, err := chat.ListMessagesPaginated(subject, convID, cursor, limit)
		if err != nil {
			writeChatError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(page)
		return
	}

	msgs, err := chat.ListMessages(subject, convID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if msgs == nil {
		msgs = []chat.MessageView{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Messages []chat.MessageView `json:"messages"`
	}{Messages: msgs})
}

// listPinned handles GET /conversations/{id}/messages/pinned.
func listPinned(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject := queryCaller(r)
	msgs, err := chat.ListPinned(subject, mux.Vars(r)["id"])
	if err != nil {
		writeChatError(w, err)
		return
	}
	if msgs == nil {
		msgs = []chat.MessageView{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Messages []chat.MessageView `json:"messages"`
	}{Messages: msgs})
}
