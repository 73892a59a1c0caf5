package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func testSecret() string {
	return "whsec_" + base64.StdEncoding.EncodeToString([]byte("test-webhook-secret"))
}

func signedHeaders(t *testing.T, secret, id string, ts time.Time, payload []byte) http.Header {
	t.Helper()
	tsStr := fmt.Sprintf("%d", ts.Unix())
	sig, err := SignWebhook(secret, id, tsStr, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	h := http.Header{}
	h.Set("svix-id", id)
	h.Set("svix-timestamp", tsStr)
	h.Set("svix-signature", sig)
	return h
}

func TestVerifyWebhook(t *testing.T) {
	secret := testSecret()
	payload := []byte(`{"type":"user.created"}`)
	h := signedHeaders(t, secret, "msg_abc", time.Now(), payload)

	id, err := VerifyWebhook(secret, h, payload, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != "msg_abc" {
		t.Fatalf("id = %q", id)
	}
}

func TestVerifyWebhookTamperedPayload(t *testing.T) {
	secret := testSecret()
	h := signedHeaders(t, secret, "msg_abc", time.Now(), []byte(`{"a":1}`))
	if _, err := VerifyWebhook(secret, h, []byte(`{"a":2}`), 0); err != ErrWebhookBadSignature {
		t.Fatalf("expected ErrWebhookBadSignature, got %v", err)
	}
}

func TestVerifyWebhookWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	h := signedHeaders(t, testSecret(), "msg_abc", time.Now(), payload)
	other := "whsec_" + base64.StdEncoding.EncodeToString([]byte("another-secret"))
	if _, err := VerifyWebhook(other, h, payload, 0); err != ErrWebhookBadSignature {
		t.Fatalf("expected ErrWebhookBadSignature, got %v", err)
	}
}

func TestVerifyWebhookStaleTimestamp(t *testing.T) {
	secret := testSecret()
	payload := []byte(`{}`)
	h := signedHeaders(t, secret, "msg_abc", time.Now().Add(-time.Hour), payload)
	if _, err := VerifyWebhook(secret, h, payload, 5*time.Minute); err != ErrWebhookStale {
		t.Fatalf("expected ErrWebhookStale, got %v", err)
	}
}

func TestVerifyWebhookMissingHeaders(t *testing.T) {
	if _, err := VerifyWebhook(testSecret(), http.Header{}, []byte(`{}`), 0); err != ErrWebhookMissingHeaders {
		t.Fatalf("expected ErrWebhookMissingHeaders, got %v", err)
	}
}

func TestVerifyWebhookMultipleSignatures(t *testing.T) {
	secret := testSecret()
	payload := []byte(`{"type":"user.updated"}`)
	h := signedHeaders(t, secret, "msg_abc", time.Now(), payload)
	// prepend a bogus candidate; verification must try all of them
	h.Set("svix-signature", "v1,AAAA "+h.Get("svix-signature"))
	if _, err := VerifyWebhook(secret, h, payload, 0); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyWebhookBadSecret(t *testing.T) {
	payload := []byte(`{}`)
	h := signedHeaders(t, testSecret(), "msg_abc", time.Now(), payload)
	if _, err := VerifyWebhook("whsec_not-base64!!", h, payload, 0); err != ErrWebhookBadSecret {
		t.Fatalf("expected ErrWebhookBadSecret, got %v", err)
	}
}
