package conversation

import (
	"context"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
)

// Store is the persistence contract shared by the durable store and the
// in-process fallback mirror.
type Store interface {
	// UpsertConversation creates the conversation on first contact and bumps
	// last_message_at/total_messages afterwards. Reports whether the
	// conversation is new.
	UpsertConversation(ctx context.Context, sessionID, senderAddress, senderName string) (*Conversation, bool, error)

	// AppendMessage stores a message. When the provider message id has
	// already been recorded for the session it no-ops and reports stored=false.
	AppendMessage(ctx context.Context, msg Message) (bool, error)

	// GetHistory returns the most recent messages in chronological order.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// GetOrInitAppointmentState loads the live snapshot, creating an idle one
	// if none exists.
	GetOrInitAppointmentState(ctx context.Context, sessionID string) (*appointment.Snapshot, error)

	// SaveAppointmentState overwrites the single snapshot row for the session.
	SaveAppointmentState(ctx context.Context, snap *appointment.Snapshot) error

	// RecordEvent appends to the audit log.
	RecordEvent(ctx context.Context, event TrackingEvent) error

	// GetSettings reads the global chatbot switch.
	GetSettings(ctx context.Context) (GlobalSettings, error)
}
