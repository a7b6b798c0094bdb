package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Clinic schedule. Appointments take two hours; the last one starts two
// hours before close.
const (
	openingHour     = 9
	closingHour     = 19
	slotDuration    = 2 * time.Hour
	maxAlternatives = 3
)

// Client talks to the clinic scheduling API and implements
// appointment.CalendarGateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ appointment.CalendarGateway = (*Client)(nil)

// NewClient creates a scheduling API client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type event struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type eventsResponse struct {
	Events []event `json:"events"`
}

type createResponse struct {
	EventID string `json:"eventId"`
	Error   string `json:"error,omitempty"`
}

// CheckAvailability reports whether a two-hour slot starting at timeOfDay
// fits the schedule for the date without overlapping existing bookings.
func (c *Client) CheckAvailability(ctx context.Context, date, timeOfDay string) (bool, error) {
	start, err := parseClock(timeOfDay)
	if err != nil {
		return false, fmt.Errorf("calendar: bad time %q: %w", timeOfDay, err)
	}
	if !withinHours(start) {
		return false, nil
	}

	events, err := c.fetchEvents(ctx, date)
	if err != nil {
		return false, err
	}

	end := start.Add(slotDuration)
	for _, ev := range events {
		evStart, err := parseClock(ev.Start)
		if err != nil {
			continue
		}
		evEnd, err := parseClock(ev.End)
		if err != nil {
			evEnd = evStart.Add(slotDuration)
		}
		if start.Before(evEnd) && evStart.Before(end) {
			return false, nil
		}
	}
	return true, nil
}

// CreateAppointment books the slot and returns the scheduler's event id.
func (c *Client) CreateAppointment(ctx context.Context, req appointment.CreateRequest) (string, error) {
	payload := map[string]any{
		"action":       "createEvent",
		"service":      req.Service,
		"date":         req.Date,
		"time":         req.Time,
		"patientName":  req.PatientName,
		"patientPhone": req.PatientPhone,
		"newPatient":   req.NewPatient,
	}

	var resp createResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("calendar: create rejected: %s", resp.Error)
	}
	if resp.EventID == "" {
		return "", fmt.Errorf("calendar: create returned no event id")
	}
	return resp.EventID, nil
}

// SuggestAlternatives returns up to three free start times for the date.
func (c *Client) SuggestAlternatives(ctx context.Context, date string) ([]string, error) {
	events, err := c.fetchEvents(ctx, date)
	if err != nil {
		return nil, err
	}

	var free []string
	for hour := openingHour; hour <= closingHour-int(slotDuration.Hours()); hour++ {
		start := clockAt(hour, 0)
		end := start.Add(slotDuration)
		taken := false
		for _, ev := range events {
			evStart, err := parseClock(ev.Start)
			if err != nil {
				continue
			}
			evEnd, err := parseClock(ev.End)
			if err != nil {
				evEnd = evStart.Add(slotDuration)
			}
			if start.Before(evEnd) && evStart.Before(end) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, start.Format("15:04"))
			if len(free) == maxAlternatives {
				break
			}
		}
	}
	return free, nil
}

func (c *Client) fetchEvents(ctx context.Context, date string) ([]event, error) {
	var resp eventsResponse
	if err := c.post(ctx, map[string]any{"action": "getEvents", "date": date}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) post(ctx context.Context, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("calendar: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calendar: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("calendar: failed to decode response: %w", err)
	}
	return nil
}

func parseClock(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}

func clockAt(hour, minute int) time.Time {
	t, _ := time.Parse("15:04", fmt.Sprintf("%02d:%02d", hour, minute))
	return t
}

func withinHours(start time.Time) bool {
	latest := clockAt(closingHour, 0).Add(-slotDuration)
	return !start.Before(clockAt(openingHour, 0)) && !start.After(latest)
}
