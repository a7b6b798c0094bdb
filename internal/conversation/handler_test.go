package conversation

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
)

const webhookEnvelope = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "123",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"contacts": [{"wa_id": "593999999999", "profile": {"name": "María"}}],
				"messages": [{
					"from": "593999999999",
					"id": "wamid.HANDLER",
					"timestamp": "1735689600",
					"type": "text",
					"text": {"body": "hola"}
				}]
			}
		}]
	}]
}`

func newTestHandler(t *testing.T, appSecret string) (*Handler, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	return NewHandler(f.engine, "verify-me", appSecret, nil), f
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestReceiveProcessesMessage(t *testing.T) {
	h, f := newTestHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(webhookEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("replies sent = %d", len(f.sender.sent))
	}
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	h, f := newTestHandler(t, "app-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(webhookEnvelope))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(f.sender.sent) != 0 {
		t.Error("message must not be processed")
	}
}

func TestReceiveAcceptsValidSignature(t *testing.T) {
	h, _ := newTestHandler(t, "app-secret")

	body := []byte(webhookEnvelope)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBuffer(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReceiveMalformedPayload(t *testing.T) {
	h, _ := newTestHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReceiveStatusOnlyEventIsOK(t *testing.T) {
	h, f := newTestHandler(t, "")

	statusEnvelope := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","statuses":[{"id":"wamid.X","status":"delivered"}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(statusEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.sender.sent) != 0 {
		t.Error("status callbacks must not produce replies")
	}
}

func TestVerifyHandshake(t *testing.T) {
	h, _ := newTestHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil)
	rec := httptest.NewRecorder()
	h.Verify()(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "42" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}
