// Package blob implements the binary attachment boundary: signed,
// expiring upload URLs, storage of raw bytes under opaque references, and
// reference-to-URL resolution at read time.
package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tarschat/pkg/logger"
	"tarschat/pkg/store"
	"tarschat/pkg/utils"
)

// DefaultMaxUploadBytes caps uploads when no limit is configured.
const DefaultMaxUploadBytes = 16 << 20 // 16 MiB

// DefaultTokenTTL bounds how long an issued upload URL stays valid.
const DefaultTokenTTL = 10 * time.Minute

var (
	cfgMu    sync.RWMutex
	secret   []byte
	tokenTTL = DefaultTokenTTL
	maxBytes = int64(DefaultMaxUploadBytes)
)

// Configure installs the token signing secret and limits. A random
// per-process secret would also work; a configured one keeps issued URLs
// valid across restarts.
func Configure(signingSecret string, ttl time.Duration, maxUploadBytes int64) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	secret = []byte(signingSecret)
	if ttl > 0 {
		tokenTTL = ttl
	}
	if maxUploadBytes > 0 {
		maxBytes = maxUploadBytes
	}
}

// MaxUploadBytes returns the configured upload size cap.
func MaxUploadBytes() int64 {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return maxBytes
}

// GenerateUploadURL issues a relative upload URL carrying a signed,
// expiring token.
func GenerateUploadURL() (string, error) {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if len(secret) == 0 {
		return "", errors.New("blob signing secret not configured")
	}
	exp := time.Now().UTC().Add(tokenTTL).Unix()
	payload := strconv.FormatInt(exp, 10)
	tok := payload + "." + sign(payload)
	return "/v1/blobs/upload?token=" + base64.URLEncoding.EncodeToString([]byte(tok)), nil
}

// VerifyUploadToken checks an upload token's signature and expiry.
func VerifyUploadToken(token string) error {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if len(secret) == 0 {
		return errors.New("blob signing secret not configured")
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return errors.New("malformed upload token")
	}
	parts := strings.SplitN(string(raw), ".", 2)
	if len(parts) != 2 {
		return errors.New("malformed upload token")
	}
	if !hmac.Equal([]byte(sign(parts[0])), []byte(parts[1])) {
		return errors.New("invalid upload token signature")
	}
	exp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || time.Now().UTC().Unix() > exp {
		return errors.New("upload token expired")
	}
	return nil
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Put stores uploaded bytes and returns the opaque reference clients pass
// back as an image or audio id.
func Put(contentType string, data []byte) (string, error) {
	if int64(len(data)) > MaxUploadBytes() {
		return "", fmt.Errorf("blob exceeds %d bytes", MaxUploadBytes())
	}
	ref := utils.GenBlobRef()
	meta := store.BlobMeta{
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedTS:   time.Now().UTC().UnixNano(),
	}
	if err := store.SaveBlob(ref, meta, data); err != nil {
		return "", err
	}
	logger.Info("blob_stored", "ref", ref, "size", len(data))
	return ref, nil
}

// Get returns a blob's metadata and bytes.
func Get(ref string) (store.BlobMeta, []byte, error) {
	return store.GetBlob(ref)
}

// URL resolves a blob reference to a fetchable URL at read time, or ""
// when the reference is unknown.
func URL(ref string) string {
	if ref == "" || !store.HasBlob(ref) {
		return ""
	}
	return "/v1/blobs/" + ref
}
