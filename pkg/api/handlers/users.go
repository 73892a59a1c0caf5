package handlers

import (
	"encoding/json"
	"net/http"

	"tarschat/pkg/chat"
	"tarschat/pkg/models"
	"tarschat/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterUsers registers user and presence routes onto the signed
// subrouter.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/me", getMe).Methods(http.MethodGet)
	r.HandleFunc("/presence", updatePresence).Methods(http.MethodPost)
	r.HandleFunc("/presence/offline", goOffline).Methods(http.MethodPost)
}

// listUsers handles GET /users. Lists every known user except the
// caller. An unknown caller gets an empty list, not an error.
func listUsers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject := queryCaller(r)
	if subject == "" {
		_ = json.NewEncoder(w).Encode(struct {
			Users []models.User `json:"users"`
		}{Users: []models.User{}})
		return
	}
	users, err := chat.ListUsers(subject)
	if err != nil {
		writeChatError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Users []models.User `json:"users"`
	}{Users: users})
}

// getMe handles GET /users/me.
func getMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject, ok := caller(w, r)
	if !ok {
		return
	}
	u, err := chat.ResolveUser(subject)
	if err != nil {
		writeChatError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(u)
}

// updatePresence handles POST /presence. Marks the caller online,
// lazily creating the user record on first contact.
func updatePresence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	subject, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		ImageURL string `json:"image_url"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &body) {
			return
		}
	}
	u, err := chat.UpdatePresence(subject, chat.PresenceUpdate{Name: body.Name, Email: body.Email, ImageURL: body.ImageURL})
	if err != nil {
		writeChatError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(u)
}

// goOffline handles POST /presence/offline. Unknown callers are a no-op.
func goOffline(w http.ResponseWriter, r *http.Request) {
	subject, ok := caller(w, r)
	if !ok {
		return
	}
	if err := chat.SetOffline(subject); err != nil {
		writeChatError(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
