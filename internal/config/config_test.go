package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MaxSlotAttempts != 3 {
		t.Errorf("MaxSlotAttempts = %d, want 3", cfg.MaxSlotAttempts)
	}
	if cfg.StoreTimeout != 3*time.Second {
		t.Errorf("StoreTimeout = %v, want 3s", cfg.StoreTimeout)
	}
	if cfg.CleanupThreshold != 0.8 {
		t.Errorf("CleanupThreshold = %v, want 0.8", cfg.CleanupThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_SLOT_ATTEMPTS", "5")
	t.Setenv("STORE_TIMEOUT", "500ms")
	t.Setenv("STAFF_ROSTER", "+5930001, +5930002 ,")

	cfg := Load()
	if cfg.MaxSlotAttempts != 5 {
		t.Errorf("MaxSlotAttempts = %d, want 5", cfg.MaxSlotAttempts)
	}
	if cfg.StoreTimeout != 500*time.Millisecond {
		t.Errorf("StoreTimeout = %v, want 500ms", cfg.StoreTimeout)
	}
	if len(cfg.StaffRoster) != 2 || cfg.StaffRoster[1] != "+5930002" {
		t.Errorf("StaffRoster = %v, want two trimmed entries", cfg.StaffRoster)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	for _, key := range []string{"DATABASE_URL", "WHATSAPP_VERIFY_TOKEN", "WHATSAPP_ACCESS_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "CALENDAR_BASE_URL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s, got: %v", key, err)
		}
	}
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{
		DatabaseURL:           "postgres://localhost/chatbot",
		WhatsAppVerifyToken:   "v",
		WhatsAppAccessToken:   "a",
		WhatsAppPhoneNumberID: "1",
		CalendarBaseURL:       "https://calendar.example.com",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
