package chat

import "errors"

// Error taxonomy surfaced by mutations. Queries never return these for a
// missing identity; they degrade to empty results instead.
var (
	// ErrUnauthenticated means no verified identity accompanied the call.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the caller is known but not permitted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means a referenced conversation, message or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the operation does not apply to the entity's
	// current state (editing an image message, deleting twice, ...).
	ErrInvalidState = errors.New("invalid state")
	// ErrEditWindowExpired means the 5-minute edit window has passed.
	ErrEditWindowExpired = errors.New("edit window expired")
)
