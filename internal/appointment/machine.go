package appointment

import (
	"context"
	"time"

	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// CreateRequest carries everything the calendar needs to book a slot.
type CreateRequest struct {
	Service      string
	Date         string
	Time         string
	PatientName  string
	PatientPhone string
	NewPatient   bool
}

// CalendarGateway is the scheduling backend seen from the flow.
type CalendarGateway interface {
	CheckAvailability(ctx context.Context, date, timeOfDay string) (bool, error)
	CreateAppointment(ctx context.Context, req CreateRequest) (string, error)
	SuggestAlternatives(ctx context.Context, date string) ([]string, error)
}

// Patient identifies the sender for calendar bookings.
type Patient struct {
	Name  string
	Phone string
}

// Machine advances booking snapshots one inbound message at a time.
type Machine struct {
	calendar    CalendarGateway
	maxAttempts int
	loc         *time.Location
	logger      *logging.Logger
	now         func() time.Time
}

// NewMachine builds a machine with the given per-slot attempt budget.
func NewMachine(calendar CalendarGateway, maxAttempts int, loc *time.Location, logger *logging.Logger) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		calendar:    calendar,
		maxAttempts: maxAttempts,
		loc:         loc,
		logger:      logger,
		now:         time.Now,
	}
}

// Result is the outcome of one transition.
type Result struct {
	Snapshot *Snapshot
	Reply    string
	Event    string
}

const (
	EventFlowStarted   = "appointment_flow_started"
	EventSlotCollected = "appointment_slot_collected"
	EventBooked        = "appointment_booked"
	EventTransferred   = "conversation_transferred"
	EventCancelled     = "appointment_cancelled"
	EventCreateRetry   = "appointment_create_retry"
)

// Start opens a fresh flow and asks for the service.
func (m *Machine) Start(snap *Snapshot) Result {
	snap.State = StateCollectingService
	snap.Slots = Slots{}
	snap.Attempts = 0
	snap.EventID = ""
	snap.UpdatedAt = m.now().UTC()
	return Result{Snapshot: snap, Reply: msgAskService, Event: EventFlowStarted}
}

// Advance consumes one patient message and moves the snapshot at most one
// state forward.
func (m *Machine) Advance(ctx context.Context, snap *Snapshot, text string, patient Patient) Result {
	if snap.State.Terminal() {
		return Result{Snapshot: snap}
	}

	if IsCancelRequest(text) {
		return m.finish(snap, StateCancelled, msgCancelled, EventCancelled)
	}

	switch snap.State {
	case StateCollectingService:
		return m.collectService(snap, text)
	case StateCollectingDate:
		return m.collectDate(snap, text)
	case StateCollectingTime:
		return m.collectTime(ctx, snap, text)
	case StateConfirming:
		return m.confirm(ctx, snap, text, patient)
	default:
		return m.Start(snap)
	}
}

func (m *Machine) collectService(snap *Snapshot, text string) Result {
	service, ok := ParseService(text)
	if !ok {
		return m.retry(snap, msgServiceRetry)
	}
	snap.Slots.Service = service
	return m.step(snap, StateCollectingDate, msgAskDate(service), EventSlotCollected)
}

func (m *Machine) collectDate(snap *Snapshot, text string) Result {
	date, ok := ParseDate(text, m.now(), m.loc)
	if !ok {
		return m.retry(snap, msgDateRetry)
	}
	if valid, reason := ValidateDate(date, m.now(), m.loc); !valid {
		return m.retry(snap, msgDateInvalid(reason))
	}
	snap.Slots.Date = date
	return m.step(snap, StateCollectingTime, msgAskTime(date), EventSlotCollected)
}

func (m *Machine) collectTime(ctx context.Context, snap *Snapshot, text string) Result {
	timeOfDay, ok := ParseTime(text)
	if !ok {
		return m.retry(snap, msgTimeRetry)
	}

	available, err := m.calendar.CheckAvailability(ctx, snap.Slots.Date, timeOfDay)
	if err != nil {
		m.logger.Warn("appointment: availability check failed",
			"session_id", snap.SessionID, "error", err)
		snap.UpdatedAt = m.now().UTC()
		return Result{Snapshot: snap, Reply: msgCalendarDown}
	}
	if !available {
		alternatives, altErr := m.calendar.SuggestAlternatives(ctx, snap.Slots.Date)
		if altErr != nil {
			alternatives = nil
		}
		snap.UpdatedAt = m.now().UTC()
		return Result{Snapshot: snap, Reply: msgSlotTaken(timeOfDay, alternatives)}
	}

	snap.Slots.Time = timeOfDay
	return m.step(snap, StateConfirming, msgConfirm(snap.Slots), EventSlotCollected)
}

func (m *Machine) confirm(ctx context.Context, snap *Snapshot, text string, patient Patient) Result {
	switch {
	case IsAffirmative(text):
		eventID, err := m.calendar.CreateAppointment(ctx, CreateRequest{
			Service:      snap.Slots.Service,
			Date:         snap.Slots.Date,
			Time:         snap.Slots.Time,
			PatientName:  patient.Name,
			PatientPhone: patient.Phone,
			NewPatient:   snap.Slots.NewPatient != nil && *snap.Slots.NewPatient,
		})
		if err != nil {
			// The slot was likely taken between the availability check and
			// the create. Drop back one state and let the patient pick again.
			m.logger.Warn("appointment: create failed, returning to time selection",
				"session_id", snap.SessionID, "error", err)
			alternatives, altErr := m.calendar.SuggestAlternatives(ctx, snap.Slots.Date)
			if altErr != nil {
				alternatives = nil
			}
			snap.Slots.Time = ""
			snap.Attempts = 0
			snap.State = StateCollectingTime
			snap.UpdatedAt = m.now().UTC()
			return Result{Snapshot: snap, Reply: msgCreateConflict(alternatives), Event: EventCreateRetry}
		}
		snap.EventID = eventID
		return m.finish(snap, StateBooked, msgBooked(snap.Slots), EventBooked)
	case IsNegative(text):
		return m.finish(snap, StateCancelled, msgCancelled, EventCancelled)
	default:
		return m.retry(snap, msgConfirmRetry)
	}
}

// retry counts a failed slot attempt and either re-prompts or hands the
// conversation to a human.
func (m *Machine) retry(snap *Snapshot, reprompt string) Result {
	snap.Attempts++
	snap.UpdatedAt = m.now().UTC()
	if snap.Attempts >= m.maxAttempts {
		snap.State = StateTransferred
		return Result{Snapshot: snap, Reply: msgTransferred(snap.Slots), Event: EventTransferred}
	}
	return Result{Snapshot: snap, Reply: reprompt}
}

// step advances to the next slot and resets the attempt budget.
func (m *Machine) step(snap *Snapshot, next State, reply, event string) Result {
	snap.State = next
	snap.Attempts = 0
	snap.UpdatedAt = m.now().UTC()
	return Result{Snapshot: snap, Reply: reply, Event: event}
}

func (m *Machine) finish(snap *Snapshot, terminal State, reply, event string) Result {
	snap.State = terminal
	snap.UpdatedAt = m.now().UTC()
	return Result{Snapshot: snap, Reply: reply, Event: event}
}

// Summary renders the collected slots for staff handoff messages.
func Summary(slots Slots) string {
	return summaryLine(slots)
}
