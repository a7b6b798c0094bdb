package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
)

func newTestServer(t *testing.T, handler func(action string, payload map[string]any) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		action, _ := payload["action"].(string)
		json.NewEncoder(w).Encode(handler(action, payload))
	}))
}

func TestCheckAvailabilityFreeSlot(t *testing.T) {
	srv := newTestServer(t, func(action string, _ map[string]any) any {
		return map[string]any{"events": []map[string]string{
			{"start": "09:00", "end": "11:00"},
		}}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	ok, err := c.CheckAvailability(context.Background(), "2026-03-03", "14:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("14:00 should be free")
	}
}

func TestCheckAvailabilityOverlap(t *testing.T) {
	srv := newTestServer(t, func(action string, _ map[string]any) any {
		return map[string]any{"events": []map[string]string{
			{"start": "10:00", "end": "12:00"},
		}}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	ok, err := c.CheckAvailability(context.Background(), "2026-03-03", "11:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("11:00 overlaps the 10:00-12:00 booking")
	}
}

func TestCheckAvailabilityOutsideHours(t *testing.T) {
	srv := newTestServer(t, func(action string, _ map[string]any) any {
		return map[string]any{"events": []map[string]string{}}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	for _, timeOfDay := range []string{"08:00", "18:00", "20:00"} {
		ok, err := c.CheckAvailability(context.Background(), "2026-03-03", timeOfDay)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("%s should be outside bookable hours", timeOfDay)
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	srv := newTestServer(t, func(action string, payload map[string]any) any {
		if action != "createEvent" {
			t.Errorf("action = %q", action)
		}
		if payload["service"] != "Botox" {
			t.Errorf("service = %v", payload["service"])
		}
		return map[string]any{"eventId": "evt-42"}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, nil)
	id, err := c.CreateAppointment(context.Background(), appointment.CreateRequest{
		Service: "Botox", Date: "2026-03-03", Time: "10:00",
		PatientName: "María", PatientPhone: "593999999999",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-42" {
		t.Errorf("event id = %q", id)
	}
}

func TestCreateAppointmentRejected(t *testing.T) {
	srv := newTestServer(t, func(action string, _ map[string]any) any {
		return map[string]any{"error": "slot taken"}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	_, err := c.CreateAppointment(context.Background(), appointment.CreateRequest{})
	if err == nil {
		t.Fatal("expected error for rejected create")
	}
}

func TestSuggestAlternatives(t *testing.T) {
	srv := newTestServer(t, func(action string, _ map[string]any) any {
		return map[string]any{"events": []map[string]string{
			{"start": "09:00", "end": "11:00"},
			{"start": "13:00", "end": "15:00"},
		}}
	})
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	alts, err := c.SuggestAlternatives(context.Background(), "2026-03-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"11:00", "15:00", "16:00"}
	if len(alts) != len(want) {
		t.Fatalf("alternatives = %v, want %v", alts, want)
	}
	for i := range want {
		if alts[i] != want[i] {
			t.Errorf("alternatives[%d] = %q, want %q", i, alts[i], want[i])
		}
	}
}

func TestTransportErrorSurfaces(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond, nil)
	_, err := c.CheckAvailability(context.Background(), "2026-03-03", "10:00")
	if err == nil {
		t.Fatal("expected transport error")
	}
}
