package models

// User is an internal account record. Subject is the external identity
// provider's opaque subject identifier; it is unique across users and is
// the only handle the HTTP layer ever sees.
type User struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"image_url,omitempty"`
	IsOnline bool   `json:"is_online"`
	// LastSeen is a UTC nanosecond timestamp; zero means never seen.
	LastSeen int64 `json:"last_seen,omitempty"`
	// CreatedTS is a UTC nanosecond timestamp.
	CreatedTS int64 `json:"created_ts"`
}
