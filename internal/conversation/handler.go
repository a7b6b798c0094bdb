package conversation

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/saludbioskin/chatbot-engine/internal/channels/whatsapp"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Handler exposes the webhook endpoints. Once a payload parses, the
// response is always 200 so the channel does not retry deliveries we
// failed to process; failures are logged and audited instead.
type Handler struct {
	engine      *Engine
	verifyToken string
	appSecret   string
	logger      *logging.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(engine *Engine, verifyToken, appSecret string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:      engine,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger,
	}
}

// Verify handles the channel's GET subscription handshake.
func (h *Handler) Verify() http.HandlerFunc {
	return whatsapp.VerifyHandshake(h.verifyToken)
}

// Receive handles POSTed webhook events.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unable to read body", http.StatusBadRequest)
		return
	}

	if !whatsapp.VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("conversation: webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := whatsapp.DecodeEvent(body)
	if err != nil {
		h.logger.Warn("conversation: malformed webhook payload", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	for _, msg := range whatsapp.ParseWebhookEvent(event) {
		in := Inbound{
			Sender:            msg.Sender,
			SenderName:        msg.SenderName,
			Text:              msg.Text,
			ProviderMessageID: msg.ProviderMessageID,
			Timestamp:         msg.Timestamp,
		}
		if err := h.engine.HandleInbound(r.Context(), in); err != nil {
			h.logger.Error("conversation: failed to process message",
				"sender", msg.Sender, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
