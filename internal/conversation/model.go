package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is one ongoing exchange with a single sender.
type Conversation struct {
	SessionID     string
	SenderAddress string
	SenderName    string
	CreatedAt     time.Time
	LastMessageAt time.Time
	TotalMessages int
	IsActive      bool
	Preferences   map[string]string
	PatientID     string
}

// Message belongs to exactly one conversation. ProviderMessageID, when
// present, is the channel's own id and acts as the dedup key for
// at-least-once webhook delivery.
type Message struct {
	SessionID         string
	Role              Role
	Content           string
	Timestamp         time.Time
	TokensUsed        int
	ProviderMessageID string
}

// TrackingEvent is an append-only audit log entry.
type TrackingEvent struct {
	ID        uuid.UUID
	SessionID string
	EventType string
	EventData map[string]any
	Timestamp time.Time
}

// GlobalSettings is the singleton switch read on every inbound message.
type GlobalSettings struct {
	ChatbotEnabled bool
}

// Inbound is a normalized inbound message from the channel adapter.
type Inbound struct {
	Sender            string
	SenderName        string
	Text              string
	ProviderMessageID string
	Timestamp         time.Time
}

// SessionID derives the stable session key for a sender address.
func SessionID(senderAddress string) string {
	sum := sha256.Sum256([]byte(senderAddress))
	return "wa:" + hex.EncodeToString(sum[:])[:24]
}

// NewTrackingEvent builds an audit entry stamped with the current time.
func NewTrackingEvent(sessionID, eventType string, data map[string]any) TrackingEvent {
	return TrackingEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: eventType,
		EventData: data,
		Timestamp: time.Now().UTC(),
	}
}
