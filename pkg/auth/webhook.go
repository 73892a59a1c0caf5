package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Identity webhook deliveries carry three headers: svix-id, svix-timestamp
// and svix-signature. The signature is an HMAC-SHA256 over
// "<id>.<timestamp>.<payload>" keyed with the base64-decoded portion of
// the endpoint secret after its "whsec_" prefix. The signature header may
// list several space-separated candidates of the form "v1,<base64 mac>".

// DefaultWebhookTolerance bounds how far a delivery timestamp may drift
// from server time before the delivery is rejected as a replay.
const DefaultWebhookTolerance = 5 * time.Minute

var (
	ErrWebhookMissingHeaders = errors.New("missing webhook signature headers")
	ErrWebhookBadSecret      = errors.New("malformed webhook secret")
	ErrWebhookStale          = errors.New("webhook timestamp outside tolerance")
	ErrWebhookBadSignature   = errors.New("webhook signature mismatch")
)

// VerifyWebhook validates a webhook delivery against secret. It returns
// the delivery id on success.
func VerifyWebhook(secret string, headers http.Header, payload []byte, tolerance time.Duration) (string, error) {
	id := strings.TrimSpace(headers.Get("svix-id"))
	ts := strings.TrimSpace(headers.Get("svix-timestamp"))
	sigHeader := strings.TrimSpace(headers.Get("svix-signature"))
	if id == "" || ts == "" || sigHeader == "" {
		return "", ErrWebhookMissingHeaders
	}

	key, err := decodeWebhookSecret(secret)
	if err != nil {
		return "", err
	}

	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	sent, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid webhook timestamp %q", ts)
	}
	drift := time.Since(time.Unix(sent, 0))
	if drift > tolerance || drift < -tolerance {
		return "", ErrWebhookStale
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			return id, nil
		}
	}
	return "", ErrWebhookBadSignature
}

// SignWebhook produces a "v1,<sig>" signature for id/ts/payload. Used by
// tests and local delivery tooling.
func SignWebhook(secret, id, ts string, payload []byte) (string, error) {
	key, err := decodeWebhookSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, ts)
	mac.Write(payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func decodeWebhookSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrWebhookBadSecret
	}
	raw := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrWebhookBadSecret
	}
	return key, nil
}
