// Package validation checks mutation payloads at the API boundary so
// invalid entity states (an image message with no blob reference, a text
// message with an attachment) never reach the store.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"tarschat/pkg/models"
)

// MaxContentLen bounds text message bodies.
const MaxContentLen = 8192

// ErrInvalid is the sentinel wrapped by every validation failure so the
// API layer can map them onto 400 responses with errors.Is.
var ErrInvalid = errors.New("invalid request")

// ValidateSend checks a discriminated send payload against its type.
func ValidateSend(typ, content, imageRef, audioRef string) error {
	var errs []string
	switch typ {
	case models.MessageText:
		if strings.TrimSpace(content) == "" {
			errs = append(errs, "text messages require content")
		}
		if imageRef != "" || audioRef != "" {
			errs = append(errs, "text messages cannot carry a blob reference")
		}
	case models.MessageImage:
		if imageRef == "" {
			errs = append(errs, "image messages require an image reference")
		}
		if audioRef != "" {
			errs = append(errs, "image messages cannot carry an audio reference")
		}
	case models.MessageAudio:
		if audioRef == "" {
			errs = append(errs, "audio messages require an audio reference")
		}
		if imageRef != "" {
			errs = append(errs, "audio messages cannot carry an image reference")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown message type %q", typ))
	}
	if len(content) > MaxContentLen {
		errs = append(errs, fmt.Sprintf("content exceeds %d bytes", MaxContentLen))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateEmoji rejects empty or oversized reaction keys.
func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is required", ErrInvalid)
	}
	if len(emoji) > 64 {
		return fmt.Errorf("%w: emoji too long", ErrInvalid)
	}
	return nil
}

// ValidateGroupName rejects empty or oversized group names.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalid)
	}
	if len(name) > 256 {
		return fmt.Errorf("%w: group name too long", ErrInvalid)
	}
	return nil
}
