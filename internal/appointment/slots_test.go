package appointment

import (
	"testing"
	"time"
)

var guayaquil = time.FixedZone("ECT", -5*3600)

// Monday 2026-03-02 10:00 local.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, guayaquil)

func TestParseService(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"quiero una limpieza facial", "Limpieza facial", true},
		{"me interesa el bótox", "Botox", true},
		{"depilación láser por favor", "Depilación láser", true},
		{"una consulta de valoración", "Consulta de valoración", true},
		{"hola buenas tardes", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseService(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseService(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"mañana", "2026-03-03", true},
		{"pasado mañana", "2026-03-04", true},
		{"hoy mismo", "2026-03-02", true},
		{"el viernes", "2026-03-06", true},
		{"el lunes", "2026-03-09", true},
		{"el 15/03", "2026-03-15", true},
		{"15/03/2026", "2026-03-15", true},
		{"2026-04-01", "2026-04-01", true},
		{"cuando puedas", "", false},
		{"el 32/03", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.text, testNow, guayaquil)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseDate(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if ok, _ := ValidateDate("2026-03-03", testNow, guayaquil); !ok {
		t.Error("tomorrow should be valid")
	}
	if ok, reason := ValidateDate("2026-03-01", testNow, guayaquil); ok || reason != "past" {
		t.Errorf("past date: got ok=%v reason=%q", ok, reason)
	}
	if ok, reason := ValidateDate("2026-03-08", testNow, guayaquil); ok || reason != "sunday" {
		t.Errorf("sunday: got ok=%v reason=%q", ok, reason)
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"a las 10:30", "10:30", true},
		{"3 pm", "15:00", true},
		{"a las 4 de la tarde", "16:00", true},
		{"9 am", "09:00", true},
		{"a las 4", "16:00", true},
		{"al mediodía", "12:00", true},
		{"por la tarde", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseTime(%q) = (%q, %v), want (%q, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestConfirmationWords(t *testing.T) {
	if !IsAffirmative("sí, confirmo") {
		t.Error("sí should be affirmative")
	}
	if IsAffirmative("no sé") {
		t.Error("no sé should not be affirmative")
	}
	if !IsNegative("no, mejor otro día") {
		t.Error("no should be negative")
	}
	if !IsCancelRequest("mejor cancela la cita") {
		t.Error("cancela should be a cancel request")
	}
}
