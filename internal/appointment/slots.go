package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Slot extraction for Spanish patient messages. Input is folded to
// lowercase ASCII before matching so "mañana" and "manana" both hit.

var serviceTable = []struct {
	keywords []string
	name     string
}{
	{[]string{"limpieza"}, "Limpieza facial"},
	{[]string{"botox", "toxina"}, "Botox"},
	{[]string{"relleno", "acido hialuronico"}, "Rellenos"},
	{[]string{"depilacion", "laser"}, "Depilación láser"},
	{[]string{"peeling"}, "Peeling"},
	{[]string{"plasma", "prp"}, "Plasma rico en plaquetas"},
	{[]string{"consulta", "valoracion", "revision"}, "Consulta de valoración"},
}

var weekdayNames = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"domingo":   time.Sunday,
}

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	clockTimeRe   = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.|hrs|h)?\b`)
)

// fold lowercases and strips Spanish diacritics for keyword matching.
func fold(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	)
	return replacer.Replace(s)
}

// ParseService matches the message against the clinic service table.
func ParseService(text string) (string, bool) {
	folded := fold(text)
	for _, entry := range serviceTable {
		for _, kw := range entry.keywords {
			if strings.Contains(folded, kw) {
				return entry.name, true
			}
		}
	}
	return "", false
}

// ParseDate extracts a calendar date from natural Spanish text relative to
// now. Returns the date formatted as YYYY-MM-DD.
func ParseDate(text string, now time.Time, loc *time.Location) (string, bool) {
	folded := fold(text)
	today := now.In(loc)

	if strings.Contains(folded, "pasado manana") {
		return today.AddDate(0, 0, 2).Format("2006-01-02"), true
	}
	if strings.Contains(folded, "manana") {
		return today.AddDate(0, 0, 1).Format("2006-01-02"), true
	}
	if strings.Contains(folded, "hoy") {
		return today.Format("2006-01-02"), true
	}

	for name, wd := range weekdayNames {
		if strings.Contains(folded, name) {
			days := (int(wd) - int(today.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			return today.AddDate(0, 0, days).Format("2006-01-02"), true
		}
	}

	if m := isoDateRe.FindStringSubmatch(folded); m != nil {
		if parsed, err := time.ParseInLocation("2006-01-02", m[0], loc); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}

	if m := numericDateRe.FindStringSubmatch(folded); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return "", false
		}
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		if candidate.Day() != day {
			return "", false
		}
		if m[3] == "" && candidate.Before(today.Truncate(24*time.Hour)) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format("2006-01-02"), true
	}

	return "", false
}

// ValidateDate rejects past dates and Sundays. The reason is a short tag
// consumed by the re-prompt templates.
func ValidateDate(date string, now time.Time, loc *time.Location) (bool, string) {
	parsed, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return false, "invalid"
	}
	today := now.In(loc)
	todayMidnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if parsed.Before(todayMidnight) {
		return false, "past"
	}
	if parsed.Weekday() == time.Sunday {
		return false, "sunday"
	}
	return true, ""
}

// ParseTime extracts a time of day, returned as HH:MM (24h). Bare hours
// below the morning opening are read as afternoon.
func ParseTime(text string) (string, bool) {
	folded := fold(text)

	if strings.Contains(folded, "mediodia") {
		return "12:00", true
	}

	m := clockTimeRe.FindStringSubmatch(folded)
	if m == nil {
		return "", false
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return "", false
	}

	suffix := m[3]
	afternoon := strings.HasPrefix(suffix, "p") ||
		strings.Contains(folded, "de la tarde") ||
		strings.Contains(folded, "de la noche")
	morning := strings.HasPrefix(suffix, "a") || strings.Contains(folded, "de la manana")

	switch {
	case afternoon && hour < 12:
		hour += 12
	case morning && hour == 12:
		hour = 0
	case !afternoon && !morning && hour >= 1 && hour <= 7:
		// "a las 4" from a patient almost always means 16:00
		hour += 12
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

var affirmativeWords = []string{"si", "claro", "dale", "confirmo", "correcto", "perfecto", "de acuerdo", "ok", "esta bien"}

var cancelWords = []string{"cancelar", "cancela", "cancelo", "ya no", "olvidalo", "no quiero", "dejalo", "mejor no"}

// IsAffirmative reports whether the message confirms the pending action.
func IsAffirmative(text string) bool {
	folded := strings.TrimSpace(fold(text))
	for _, w := range affirmativeWords {
		if folded == w || strings.HasPrefix(folded, w+" ") || strings.HasPrefix(folded, w+",") {
			return true
		}
	}
	return false
}

// IsNegative reports whether the message declines the pending action.
func IsNegative(text string) bool {
	folded := strings.TrimSpace(fold(text))
	return folded == "no" || strings.HasPrefix(folded, "no ") || strings.HasPrefix(folded, "no,")
}

// IsCancelRequest reports whether the message abandons the whole flow.
func IsCancelRequest(text string) bool {
	folded := fold(text)
	for _, w := range cancelWords {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}
