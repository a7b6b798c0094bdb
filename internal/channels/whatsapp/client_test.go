package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendTextSuccess(t *testing.T) {
	var gotAuth string
	var gotReq SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SendResponse{Messages: []struct {
			ID string `json:"id"`
		}{{ID: "wamid.OUT"}}})
	}))
	defer srv.Close()

	client := NewClient("token-abc", "555", srv.URL, nil)

	delivered, err := client.SendText(context.Background(), "593969890689", "hola")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if !delivered {
		t.Error("delivered = false, want true")
	}
	if gotAuth != "Bearer token-abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.MessagingProduct != "whatsapp" || gotReq.To != "593969890689" || gotReq.Text.Body != "hola" {
		t.Errorf("unexpected request payload: %+v", gotReq)
	}
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SendResponse{Error: &APIError{Message: "invalid recipient", Code: 131026}})
	}))
	defer srv.Close()

	client := NewClient("token", "555", srv.URL, nil)

	delivered, err := client.SendText(context.Background(), "bad", "hola")
	if delivered {
		t.Error("delivered = true on API error")
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSendTextTransportFailure(t *testing.T) {
	client := NewClient("token", "555", "http://127.0.0.1:1", nil)

	delivered, err := client.SendText(context.Background(), "123", "hola")
	if delivered || err == nil {
		t.Fatalf("expected transport failure, got delivered=%v err=%v", delivered, err)
	}
}
