// Package api mounts the versioned HTTP surface. Authentication and CORS
// are handled by the gateway middleware in pkg/auth; handlers resolve the
// acting user from the signature-verified request context.
package api

import (
	"net/http"

	"tarschat/pkg/api/handlers"
	"tarschat/pkg/auth"

	"github.com/gorilla/mux"
)

// Handler returns the /v1 API router.
func Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	// webhook deliveries carry their own signature scheme and the blob
	// upload endpoint is gated by a signed upload token
	handlers.RegisterWebhooks(v1)
	handlers.RegisterBlobs(v1)

	signed := v1.NewRoute().Subrouter()
	signed.Use(auth.RequireSignedUser)
	handlers.RegisterUsers(signed)
	handlers.RegisterConversations(signed)
	handlers.RegisterMessages(signed)

	return r
}
