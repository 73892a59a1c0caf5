package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"tarschat/pkg/auth"
	"tarschat/pkg/chat"
	"tarschat/pkg/config"
	"tarschat/pkg/store"
)

const (
	testSigningKey    = "test-signing-key"
	testWebhookSecret = "whsec_dGVzdC13ZWJob29rLXNlY3JldA=="
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "db")); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	config.SetRuntime(&config.RuntimeConfig{
		SigningKeys:   map[string]struct{}{testSigningKey: {}},
		WebhookSecret: testWebhookSecret,
	})
	srv := httptest.NewServer(Handler())
	t.Cleanup(func() {
		srv.Close()
		config.SetRuntime(nil)
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	return srv
}

// backendReq builds a request acting as a backend service on behalf of
// the given subject.
func backendReq(t *testing.T, method, url, subject string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", subject)
	return req
}

func doJSON(t *testing.T, client *http.Client, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d", req.Method, req.URL.Path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", req.URL.Path, err)
		}
	}
}

// deliverIdentity posts a signed identity webhook for the given subject.
func deliverIdentity(t *testing.T, client *http.Client, base, eventType, subject, first, last, email string) {
	t.Helper()
	deliverIdentityStatus(t, client, base, eventType, subject, first, last, email, http.StatusOK)
}

func deliverIdentityStatus(t *testing.T, client *http.Client, base, eventType, subject, first, last, email string, wantStatus int) {
	t.Helper()
	payload := fmt.Sprintf(`{"type":%q,"data":{"id":%q,"first_name":%q,"last_name":%q,"email_addresses":[{"email_address":%q}]}}`,
		eventType, subject, first, last, email)
	id := "msg_" + subject
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := auth.SignWebhook(testWebhookSecret, id, ts, []byte(payload))
	if err != nil {
		t.Fatalf("sign webhook: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/webhooks/identity", bytes.NewReader([]byte(payload)))
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", sig)
	doJSON(t, client, req, wantStatus, nil)
}

func TestMessagingFlow(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	deliverIdentity(t, client, srv.URL, "user.created", "subj_a", "Alice", "Ames", "alice@example.com")
	deliverIdentity(t, client, srv.URL, "user.created", "subj_b", "Bob", "Burns", "bob@example.com")

	// Alice discovers Bob
	var users struct {
		Users []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"users"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/users", "subj_a", nil), http.StatusOK, &users)
	if len(users.Users) != 1 || users.Users[0].Name != "Bob Burns" {
		t.Fatalf("users = %+v", users.Users)
	}
	bobID := users.Users[0].ID

	// direct conversation, idempotent
	var conv struct {
		ConversationID string `json:"conversation_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/conversations/direct", "subj_a",
		map[string]string{"participant_id": bobID}), http.StatusOK, &conv)
	var conv2 struct {
		ConversationID string `json:"conversation_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/conversations/direct", "subj_a",
		map[string]string{"participant_id": bobID}), http.StatusOK, &conv2)
	if conv.ConversationID == "" || conv.ConversationID != conv2.ConversationID {
		t.Fatalf("direct not deduped: %q vs %q", conv.ConversationID, conv2.ConversationID)
	}

	// send and read back
	var sent struct {
		MessageID string `json:"message_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages", "subj_a",
		chat.SendRequest{ConversationID: conv.ConversationID, Type: "text", Content: "hi bob"}), http.StatusOK, &sent)

	var listed struct {
		Messages []chat.MessageView `json:"messages"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet,
		srv.URL+"/v1/conversations/"+conv.ConversationID+"/messages", "subj_b", nil), http.StatusOK, &listed)
	if len(listed.Messages) != 1 || listed.Messages[0].Content != "hi bob" {
		t.Fatalf("messages = %+v", listed.Messages)
	}
	if listed.Messages[0].Sender == nil || listed.Messages[0].Sender.Name != "Alice Ames" {
		t.Fatalf("sender = %+v", listed.Messages[0].Sender)
	}

	// Bob's conversation list shows the unread message
	var convs struct {
		Conversations []chat.ConversationView `json:"conversations"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/conversations", "subj_b", nil), http.StatusOK, &convs)
	if len(convs.Conversations) != 1 || convs.Conversations[0].UnreadCount != 1 {
		t.Fatalf("conversations = %+v", convs.Conversations)
	}

	doJSON(t, client, backendReq(t, http.MethodPost,
		srv.URL+"/v1/conversations/"+conv.ConversationID+"/read", "subj_b", nil), http.StatusOK, nil)
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/conversations", "subj_b", nil), http.StatusOK, &convs)
	if convs.Conversations[0].UnreadCount != 0 {
		t.Fatalf("unread after read = %d", convs.Conversations[0].UnreadCount)
	}
}

func TestSignedFrontendFlow(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	deliverIdentity(t, client, srv.URL, "user.created", "subj_a", "Alice", "", "alice@example.com")

	sign := func(subject string) string {
		mac := hmac.New(sha256.New, []byte(testSigningKey))
		mac.Write([]byte(subject))
		return hex.EncodeToString(mac.Sum(nil))
	}

	// signature-verified caller
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/me", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "subj_a")
	req.Header.Set("X-User-Signature", sign("subj_a"))
	var me struct {
		Name string `json:"name"`
	}
	doJSON(t, client, req, http.StatusOK, &me)
	if me.Name != "Alice" {
		t.Fatalf("me = %+v", me)
	}

	// missing signature is rejected for frontend callers
	req2, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/me", nil)
	req2.Header.Set("X-Role-Name", "frontend")
	req2.Header.Set("X-User-ID", "subj_a")
	doJSON(t, client, req2, http.StatusUnauthorized, nil)

	// a valid signature for a different user is rejected
	req3, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/me", nil)
	req3.Header.Set("X-Role-Name", "frontend")
	req3.Header.Set("X-User-ID", "subj_a")
	req3.Header.Set("X-User-Signature", sign("subj_b"))
	doJSON(t, client, req3, http.StatusUnauthorized, nil)
}

func TestErrorStatusMapping(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	deliverIdentity(t, client, srv.URL, "user.created", "subj_a", "Alice", "", "alice@example.com")
	deliverIdentity(t, client, srv.URL, "user.created", "subj_b", "Bob", "", "bob@example.com")

	var users struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/users", "subj_a", nil), http.StatusOK, &users)
	bobID := users.Users[0].ID

	var conv struct {
		ConversationID string `json:"conversation_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/conversations/direct", "subj_a",
		map[string]string{"participant_id": bobID}), http.StatusOK, &conv)

	// 400: invalid send payload
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages", "subj_a",
		chat.SendRequest{ConversationID: conv.ConversationID, Type: "text"}), http.StatusBadRequest, nil)

	// 404: unknown conversation
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages", "subj_a",
		chat.SendRequest{ConversationID: "conv_missing", Type: "text", Content: "x"}), http.StatusNotFound, nil)

	var sent struct {
		MessageID string `json:"message_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages", "subj_a",
		chat.SendRequest{ConversationID: conv.ConversationID, Type: "text", Content: "hello"}), http.StatusOK, &sent)

	// 403: edit by non-sender
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages/"+sent.MessageID+"/edit", "subj_b",
		map[string]string{"content": "tampered"}), http.StatusForbidden, nil)

	// 409: unknown delete scope
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages/"+sent.MessageID+"/delete", "subj_a",
		map[string]string{"scope": "later"}), http.StatusConflict, nil)

	// 400: empty reaction emoji
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/messages/"+sent.MessageID+"/reactions", "subj_a",
		map[string]string{"emoji": ""}), http.StatusBadRequest, nil)
}

func TestWebhookRejectsBadDeliveries(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	payload := []byte(`{"type":"user.created","data":{"id":"subj_x"}}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	// wrong key
	wrongSecret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("other-key"))
	sig, err := auth.SignWebhook(wrongSecret, "msg_1", ts, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/identity", bytes.NewReader(payload))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", sig)
	doJSON(t, client, req, http.StatusUnauthorized, nil)

	// missing headers
	req2, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/identity", bytes.NewReader(payload))
	doJSON(t, client, req2, http.StatusUnauthorized, nil)

	// stale timestamp
	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig3, _ := auth.SignWebhook(testWebhookSecret, "msg_3", old, payload)
	req3, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/identity", bytes.NewReader(payload))
	req3.Header.Set("svix-id", "msg_3")
	req3.Header.Set("svix-timestamp", old)
	req3.Header.Set("svix-signature", sig3)
	doJSON(t, client, req3, http.StatusUnauthorized, nil)

	// unrecognized event types are acknowledged
	unknown := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	ts4 := strconv.FormatInt(time.Now().Unix(), 10)
	sig4, _ := auth.SignWebhook(testWebhookSecret, "msg_4", ts4, unknown)
	req4, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/webhooks/identity", bytes.NewReader(unknown))
	req4.Header.Set("svix-id", "msg_4")
	req4.Header.Set("svix-timestamp", ts4)
	req4.Header.Set("svix-signature", sig4)
	doJSON(t, client, req4, http.StatusOK, nil)
}

func TestWebhookUpdateEvent(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	deliverIdentity(t, client, srv.URL, "user.created", "subj_a", "Alice", "", "alice@example.com")
	deliverIdentity(t, client, srv.URL, "user.updated", "subj_a", "Alicia", "", "alicia@example.com")

	var me struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/users/me", "subj_a", nil), http.StatusOK, &me)
	if me.Name != "Alicia" || me.Email != "alicia@example.com" {
		t.Fatalf("me = %+v", me)
	}

	// update for a never-created subject fails; the provider retries the
	// delivery until a user.created lands
	deliverIdentityStatus(t, client, srv.URL, "user.updated", "subj_new", "Nora", "", "nora@example.com", http.StatusNotFound)
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/users/me", "subj_new", nil), http.StatusNotFound, nil)
}

func TestTypingEndpoints(t *testing.T) {
	srv := setupServer(t)
	client := srv.Client()

	deliverIdentity(t, client, srv.URL, "user.created", "subj_a", "Alice", "", "alice@example.com")
	deliverIdentity(t, client, srv.URL, "user.created", "subj_b", "Bob", "", "bob@example.com")

	var users struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet, srv.URL+"/v1/users", "subj_a", nil), http.StatusOK, &users)

	var conv struct {
		ConversationID string `json:"conversation_id"`
	}
	doJSON(t, client, backendReq(t, http.MethodPost, srv.URL+"/v1/conversations/direct", "subj_a",
		map[string]string{"participant_id": users.Users[0].ID}), http.StatusOK, &conv)

	doJSON(t, client, backendReq(t, http.MethodPost,
		srv.URL+"/v1/conversations/"+conv.ConversationID+"/typing", "subj_b",
		map[string]bool{"is_typing": true}), http.StatusOK, nil)

	var typing struct {
		Typing []string `json:"typing"`
	}
	doJSON(t, client, backendReq(t, http.MethodGet,
		srv.URL+"/v1/conversations/"+conv.ConversationID+"/typing", "subj_a", nil), http.StatusOK, &typing)
	if len(typing.Typing) != 1 || typing.Typing[0] != "Bob" {
		t.Fatalf("typing = %v", typing.Typing)
	}
}
