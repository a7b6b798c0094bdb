package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// VerifyHandshake handles the GET webhook verification challenge from Meta.
// The challenge is echoed only when the verify token matches.
func VerifyHandshake(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode == "subscribe" && token != "" && token == verifyToken {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, challenge)
			return
		}

		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// VerifySignature verifies the X-Hub-Signature-256 header over the raw body.
// An empty app secret disables the check (local development only).
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" {
		return true
	}
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}

// ParseWebhookEvent extracts normalized inbound messages from an envelope.
// Status callbacks and unsupported payloads yield no messages and no error.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var messages []InboundMessage

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range change.Value.Messages {
				text, ok := extractText(m)
				if !ok {
					continue
				}

				messages = append(messages, InboundMessage{
					Sender:            m.From,
					SenderName:        names[m.From],
					Text:              text,
					ProviderMessageID: m.ID,
					Timestamp:         parseTimestamp(m.Timestamp),
				})
			}
		}
	}

	return messages
}

// extractText pulls the user-visible text out of a message payload.
// Button and list replies map to their titles.
func extractText(m InboundPayload) (string, bool) {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return "", false
		}
		return m.Text.Body, true
	case "interactive":
		if m.Interactive == nil {
			return "", false
		}
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.Title, true
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.Title, true
		}
		return "", false
	default:
		// Media, reactions, locations: nothing the engine can act on.
		return "", false
	}
}

func parseTimestamp(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// DecodeEvent unmarshals a webhook body into an envelope.
func DecodeEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("whatsapp: decode webhook event: %w", err)
	}
	return event, nil
}
