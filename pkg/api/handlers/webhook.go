package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"tarschat/pkg/auth"
	"tarschat/pkg/chat"
	"tarschat/pkg/config"
	"tarschat/pkg/logger"
	"tarschat/pkg/telemetry"
	"tarschat/pkg/utils"

	"github.com/gorilla/mux"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// identityEvent is the verified delivery envelope from the identity
// provider.
type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// RegisterWebhooks registers the identity webhook route.
func RegisterWebhooks(r *mux.Router) {
	r.HandleFunc("/webhooks/identity", identityWebhook).Methods(http.MethodPost)
}

// identityWebhook handles POST /webhooks/identity. The delivery must
// carry a valid signature; unrecognized event types are acknowledged and
// ignored.
func identityWebhook(w http.ResponseWriter, r *http.Request) {
	secret := config.GetWebhookSecret()
	if secret == "" {
		telemetry.CountWebhook("invalid")
		utils.JSONError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		telemetry.CountWebhook("invalid")
		utils.JSONError(w, http.StatusBadRequest, "read body failed")
		return
	}

	deliveryID, err := auth.VerifyWebhook(secret, r.Header, payload, config.GetWebhookTolerance())
	if err != nil {
		telemetry.CountWebhook("invalid")
		logger.Warn("webhook_rejected", "error", err, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var ev identityEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		telemetry.CountWebhook("invalid")
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if ev.Data.ID == "" {
		telemetry.CountWebhook("invalid")
		utils.JSONError(w, http.StatusBadRequest, "event missing subject id")
		return
	}

	name := strings.TrimSpace(strings.TrimSpace(ev.Data.FirstName) + " " + strings.TrimSpace(ev.Data.LastName))
	email := ""
	if len(ev.Data.EmailAddresses) > 0 {
		email = ev.Data.EmailAddresses[0].EmailAddress
	}

	switch ev.Type {
	case "user.created":
		if err := chat.ProvisionUser(ev.Data.ID, name, email, ev.Data.ImageURL); err != nil {
			telemetry.CountWebhook("invalid")
			writeChatError(w, err)
			return
		}
	case "user.updated":
		if err := chat.PatchUser(ev.Data.ID, name, email, ev.Data.ImageURL); err != nil {
			telemetry.CountWebhook("invalid")
			writeChatError(w, err)
			return
		}
	default:
		telemetry.CountWebhook("ignored")
		logger.Debug("webhook_ignored", "type", ev.Type, "delivery", deliveryID)
		utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	telemetry.CountWebhook("ok")
	logger.Info("webhook_processed", "type", ev.Type, "subject", ev.Data.ID, "delivery", deliveryID)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
