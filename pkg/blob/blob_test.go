package blob

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"tarschat/pkg/store"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		Configure("test-secret", DefaultTokenTTL, DefaultMaxUploadBytes)
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	Configure("test-secret", DefaultTokenTTL, DefaultMaxUploadBytes)
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse upload url: %v", err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("no token in %q", raw)
	}
	return tok
}

func TestUploadTokenRoundTrip(t *testing.T) {
	openTestStore(t)

	raw, err := GenerateUploadURL()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(raw, "/v1/blobs/upload?token=") {
		t.Fatalf("unexpected url %q", raw)
	}
	if err := VerifyUploadToken(tokenFromURL(t, raw)); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestUploadTokenTampered(t *testing.T) {
	openTestStore(t)

	raw, _ := GenerateUploadURL()
	tok := tokenFromURL(t, raw)
	if err := VerifyUploadToken(tok[:len(tok)-4] + "AAAA"); err == nil {
		t.Fatal("tampered token accepted")
	}
	if err := VerifyUploadToken("not-base64!!"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestUploadTokenExpiry(t *testing.T) {
	openTestStore(t)

	// a correctly signed token whose deadline already passed
	payload := strconv.FormatInt(time.Now().UTC().Add(-time.Minute).Unix(), 10)
	tok := base64.URLEncoding.EncodeToString([]byte(payload + "." + sign(payload)))
	if err := VerifyUploadToken(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestUploadTokenWrongKey(t *testing.T) {
	openTestStore(t)

	raw, _ := GenerateUploadURL()
	tok := tokenFromURL(t, raw)
	Configure("rotated-secret", DefaultTokenTTL, 0)
	if err := VerifyUploadToken(tok); err == nil {
		t.Fatal("token signed with a different key accepted")
	}
}

func TestPutGetAndURL(t *testing.T) {
	openTestStore(t)

	data := []byte("fake png bytes")
	ref, err := Put("image/png", data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta, got, err := Get(ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if meta.ContentType != "image/png" || meta.Size != int64(len(data)) {
		t.Fatalf("meta = %+v", meta)
	}
	if string(got) != string(data) {
		t.Fatalf("bytes = %q", got)
	}
	if u := URL(ref); u != "/v1/blobs/"+ref {
		t.Fatalf("url = %q", u)
	}
	if u := URL("blob_missing"); u != "" {
		t.Fatalf("unknown ref resolved to %q", u)
	}
}

func TestPutRejectsOversize(t *testing.T) {
	openTestStore(t)

	Configure("test-secret", 0, 8)
	if _, err := Put("application/octet-stream", []byte("nine bytes")); err == nil {
		t.Fatal("oversize blob accepted")
	}
}
