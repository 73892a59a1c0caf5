package chat

import (
	"errors"
	"fmt"

	"tarschat/pkg/logger"
	"tarschat/pkg/models"
	"tarschat/pkg/store"
	"tarschat/pkg/utils"
)

// ResolveUser maps an authenticated subject identifier to its internal
// user record. It does not create one; see UpdatePresence for lazy
// provisioning.
func ResolveUser(subject string) (models.User, error) {
	if subject == "" {
		return models.User{}, ErrUnauthenticated
	}
	u, err := store.GetUserBySubject(subject)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("user %s: %w", subject, ErrNotFound)
	}
	return u, err
}

// PresenceUpdate carries optional profile claims supplied alongside a
// presence ping.
type PresenceUpdate struct {
	Name     string
	Email    string
	ImageURL string
}

// UpdatePresence marks the subject's user online and refreshes lastSeen,
// creating the user lazily on first contact. Profile claims, when
// present, overwrite the stored fields.
func UpdatePresence(subject string, upd PresenceUpdate) (models.User, error) {
	if subject == "" {
		return models.User{}, ErrUnauthenticated
	}
	mu.Lock()
	defer mu.Unlock()

	ts := now()
	u, err := store.GetUserBySubject(subject)
	if errors.Is(err, store.ErrNotFound) {
		name := upd.Name
		if name == "" {
			name = upd.Email
		}
		if name == "" {
			name = "Unknown"
		}
		u = models.User{
			ID:        utils.GenUserID(),
			Subject:   subject,
			Name:      name,
			Email:     upd.Email,
			ImageURL:  upd.ImageURL,
			IsOnline:  true,
			LastSeen:  ts,
			CreatedTS: ts,
		}
		if err := store.SaveUser(u); err != nil {
			return models.User{}, err
		}
		logger.Info("user_provisioned_on_presence", "user", u.ID, "subject", subject)
		return u, nil
	}
	if err != nil {
		return models.User{}, err
	}

	u.IsOnline = true
	u.LastSeen = ts
	if upd.Name != "" {
		u.Name = upd.Name
	}
	if upd.Email != "" {
		u.Email = upd.Email
	}
	if upd.ImageURL != "" {
		u.ImageURL = upd.ImageURL
	}
	if err := store.SaveUser(u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// SetOffline marks the subject's user offline. Unknown subjects are a
// no-op; the client may fire this after the account was never provisioned.
func SetOffline(subject string) error {
	mu.Lock()
	defer mu.Unlock()
	u, err := store.GetUserBySubject(subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	u.IsOnline = false
	u.LastSeen = now()
	return store.SaveUser(u)
}

// ProvisionUser creates a user from an identity-provider webhook event.
// Existing subjects are patched instead, keeping the call idempotent
// across webhook redeliveries.
func ProvisionUser(subject, name, email, imageURL string) error {
	mu.Lock()
	defer mu.Unlock()
	if u, err := store.GetUserBySubject(subject); err == nil {
		return patchUserLocked(u, name, email, imageURL)
	}
	ts := now()
	if name == "" {
		name = email
	}
	u := models.User{
		ID:        utils.GenUserID(),
		Subject:   subject,
		Name:      name,
		Email:     email,
		ImageURL:  imageURL,
		IsOnline:  true,
		CreatedTS: ts,
	}
	if err := store.SaveUser(u); err != nil {
		return err
	}
	logger.Info("user_provisioned", "user", u.ID, "subject", subject)
	return nil
}

// PatchUser updates name/email/avatar of an existing user from a webhook
// event. Returns ErrNotFound when the subject was never provisioned.
func PatchUser(subject, name, email, imageURL string) error {
	mu.Lock()
	defer mu.Unlock()
	u, err := store.GetUserBySubject(subject)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("user %s: %w", subject, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return patchUserLocked(u, name, email, imageURL)
}

func patchUserLocked(u models.User, name, email, imageURL string) error {
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if imageURL != "" {
		u.ImageURL = imageURL
	}
	return store.SaveUser(u)
}

// ListUsers returns every user except the caller. An unknown caller gets
// the full directory; queries fail soft.
func ListUsers(subject string) ([]models.User, error) {
	users, err := store.ListUsers()
	if err != nil {
		return nil, err
	}
	if subject == "" {
		return users, nil
	}
	out := users[:0]
	for _, u := range users {
		if u.Subject != subject {
			out = append(out, u)
		}
	}
	return out, nil
}

// SweepPresence marks users offline whose lastSeen is older than the
// given cutoff and returns how many were flipped.
func SweepPresence(olderThan int64) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	users, err := store.ListUsers()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range users {
		if u.IsOnline && u.LastSeen > 0 && u.LastSeen < olderThan {
			u.IsOnline = false
			if err := store.SaveUser(u); err != nil {
				return n, err
			}
			n++
		}
	}
	if n > 0 {
		logger.Info("presence_swept", "marked_offline", n)
	}
	return n, nil
}
