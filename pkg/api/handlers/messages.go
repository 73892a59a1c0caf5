package handlers

import (
	"encoding/json"
	"net/http"

	"tarschat/pkg/chat"
	"tarschat/pkg/telemetry"
	"tarschat/pkg/utils"
	"tarschat/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterMessages registers message lifecycle routes onto the signed
// subrouter.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/edit", editMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/delete", deleteMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/star", starMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", toggleReaction).Methods(http.MethodPost)
}

// sendMessage handles POST /messages.
func sendMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var req chat.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := chat.Send(subject, req)
	if err != nil {
		writeChatError(w, err)
		return
	}
	telemetry.CountMessageSent()
	_ = json.NewEncoder(w).Encode(map[string]string{"message_id": id})
}

// editMessage handles POST /messages/{id}/edit.
func editMessage(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := chat.Edit(subject, mux.Vars(r)["id"], body.Content); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deleteMessage handles POST /messages/{id}/delete. Scope "everyone"
// tombstones the message for all members; "me" hides it for the caller
// only.
func deleteMessage(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Scope string `json:"scope"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := chat.Delete(subject, mux.Vars(r)["id"], body.Scope); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pinMessage handles POST /messages/{id}/pin, toggling the shared pin.
func pinMessage(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	if err := chat.TogglePin(subject, mux.Vars(r)["id"]); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// starMessage handles POST /messages/{id}/star, toggling the caller's
// private star.
func starMessage(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	if err := chat.ToggleStar(subject, mux.Vars(r)["id"]); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toggleReaction handles POST /messages/{id}/reactions.
func toggleReaction(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Emoji string `json:"emoji"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := validation.ValidateEmoji(body.Emoji); err != nil {
		writeChatError(w, err)
		return
	}
	if err := chat.ToggleReaction(subject, mux.Vars(r)["id"], body.Emoji); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
