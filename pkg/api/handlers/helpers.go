package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tarschat/pkg/auth"
	"tarschat/pkg/chat"
	"tarschat/pkg/utils"
	"tarschat/pkg/validation"
)

// caller resolves the acting user for a mutation. Writes the error
// response and returns false when no user could be resolved.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, status, msg := auth.ResolveUserFromRequest(r)
	if id == "" {
		utils.JSONError(w, status, msg)
		return "", false
	}
	return id, true
}

// queryCaller resolves the acting user for a query. Queries fail soft:
// an empty id with ok=true means the handler should return empty results.
func queryCaller(r *http.Request) string {
	if id := auth.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		if h := r.Header.Get("X-User-ID"); h != "" {
			return h
		}
		return r.URL.Query().Get("user")
	}
	return ""
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// writeChatError maps chat package errors onto HTTP statuses.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, chat.ErrUnauthorized):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrEditWindowExpired), errors.Is(err, chat.ErrInvalidState):
		utils.JSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, validation.ErrInvalid):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
