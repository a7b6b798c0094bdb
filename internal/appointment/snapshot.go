package appointment

import "time"

// State names the position of a booking flow. Transitions only move
// forward; terminal snapshots are kept as a record of the outcome.
type State string

const (
	StateIdle              State = "IDLE"
	StateCollectingService State = "COLLECTING_SERVICE"
	StateCollectingDate    State = "COLLECTING_DATE"
	StateCollectingTime    State = "COLLECTING_TIME"
	StateConfirming        State = "CONFIRMING"
	StateBooked            State = "BOOKED"
	StateTransferred       State = "TRANSFERRED"
	StateCancelled         State = "CANCELLED"
)

// Terminal reports whether the state ends the flow.
func (s State) Terminal() bool {
	switch s {
	case StateBooked, StateTransferred, StateCancelled:
		return true
	}
	return false
}

// Active reports whether a flow is in progress and owns the next message.
func (s State) Active() bool {
	switch s {
	case StateCollectingService, StateCollectingDate, StateCollectingTime, StateConfirming:
		return true
	}
	return false
}

var allowedTransitions = map[State][]State{
	StateIdle:              {StateCollectingService},
	StateCollectingService: {StateCollectingDate, StateTransferred, StateCancelled},
	StateCollectingDate:    {StateCollectingTime, StateTransferred, StateCancelled},
	StateCollectingTime:    {StateConfirming, StateTransferred, StateCancelled},
	StateConfirming:        {StateBooked, StateCollectingTime, StateTransferred, StateCancelled},
}

// CanTransition reports whether the move is legal. Staying put is always
// legal (slot re-prompts).
func CanTransition(from, to State) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Slots holds what the flow has collected so far.
type Slots struct {
	Service    string `json:"service,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	NewPatient *bool  `json:"new_patient,omitempty"`
}

// Snapshot is the single mutable booking record per session. Each inbound
// message performs one read-modify-write of it.
type Snapshot struct {
	SessionID string
	State     State
	Slots     Slots
	Attempts  int
	EventID   string
	UpdatedAt time.Time
}

// NewSnapshot returns an idle snapshot for the session.
func NewSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		State:     StateIdle,
		UpdatedAt: time.Now().UTC(),
	}
}
