package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
)

// PostgresStore is the durable Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		return nil
	}
	return &PostgresStore{db: db}
}

// UpsertConversation creates the conversation on first contact, otherwise
// refreshes last_message_at and the sender name.
func (s *PostgresStore) UpsertConversation(ctx context.Context, sessionID, senderAddress, senderName string) (*Conversation, bool, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversations (
			session_id, sender_address, sender_name,
			created_at, last_message_at, total_messages, is_active, preferences
		) VALUES ($1, $2, $3, $4, $4, 0, TRUE, '{}')
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, senderAddress, senderName, now)
	if err != nil {
		return nil, false, fmt.Errorf("conversation: failed to upsert: %w", err)
	}

	created, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("conversation: failed to read upsert result: %w", err)
	}
	isNew := created > 0

	if !isNew {
		_, err = s.db.ExecContext(ctx, `
			UPDATE chat_conversations SET
				last_message_at = $1,
				is_active = TRUE,
				sender_name = CASE WHEN $2 <> '' THEN $2 ELSE sender_name END
			WHERE session_id = $3
		`, now, senderName, sessionID)
		if err != nil {
			return nil, false, fmt.Errorf("conversation: failed to refresh: %w", err)
		}
	}

	conv, err := s.getConversation(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return conv, isNew, nil
}

func (s *PostgresStore) getConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	var conv Conversation
	var prefs []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, sender_address, COALESCE(sender_name, ''),
			   created_at, last_message_at, total_messages, is_active, preferences
		FROM chat_conversations
		WHERE session_id = $1
	`, sessionID).Scan(
		&conv.SessionID, &conv.SenderAddress, &conv.SenderName,
		&conv.CreatedAt, &conv.LastMessageAt, &conv.TotalMessages,
		&conv.IsActive, &prefs,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to get: %w", err)
	}

	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &conv.Preferences); err != nil {
			conv.Preferences = nil
		}
	}
	return &conv, nil
}

// AppendMessage inserts the message and bumps the conversation counters.
// A duplicate provider message id is a silent no-op.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg Message) (bool, error) {
	timestamp := msg.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	var providerID any
	if msg.ProviderMessageID != "" {
		providerID = msg.ProviderMessageID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (
			id, session_id, role, content, timestamp, tokens_used, provider_message_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, provider_message_id) DO NOTHING
	`, uuid.New(), msg.SessionID, string(msg.Role), msg.Content, timestamp, msg.TokensUsed, providerID)
	if err != nil {
		return false, fmt.Errorf("conversation: failed to insert message: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conversation: failed to read insert result: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE chat_conversations SET
			total_messages = total_messages + 1,
			last_message_at = $1
		WHERE session_id = $2
	`, timestamp, msg.SessionID)
	if err != nil {
		return false, fmt.Errorf("conversation: failed to update counters: %w", err)
	}

	return true, nil
}

// GetHistory returns the most recent messages in chronological order.
func (s *PostgresStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp, tokens_used, COALESCE(provider_message_id, '')
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to get history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg := Message{SessionID: sessionID}
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp, &msg.TokensUsed, &msg.ProviderMessageID); err != nil {
			continue
		}
		msg.Role = Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: failed to read history: %w", err)
	}

	// Newest-first from the query, oldest-first for callers.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetOrInitAppointmentState loads the booking snapshot, creating an idle
// one on first access.
func (s *PostgresStore) GetOrInitAppointmentState(ctx context.Context, sessionID string) (*appointment.Snapshot, error) {
	snap := appointment.Snapshot{SessionID: sessionID}
	var state string
	var newPatient sql.NullBool

	err := s.db.QueryRowContext(ctx, `
		SELECT state, COALESCE(service, ''), COALESCE(appointment_date, ''),
			   COALESCE(appointment_time, ''), new_patient, attempts,
			   COALESCE(event_id, ''), updated_at
		FROM appointment_states
		WHERE session_id = $1
	`, sessionID).Scan(
		&state, &snap.Slots.Service, &snap.Slots.Date, &snap.Slots.Time,
		&newPatient, &snap.Attempts, &snap.EventID, &snap.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		fresh := appointment.NewSnapshot(sessionID)
		if err := s.SaveAppointmentState(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to get appointment state: %w", err)
	}

	snap.State = appointment.State(state)
	if newPatient.Valid {
		v := newPatient.Bool
		snap.Slots.NewPatient = &v
	}
	return &snap, nil
}

// SaveAppointmentState overwrites the single snapshot row for the session.
func (s *PostgresStore) SaveAppointmentState(ctx context.Context, snap *appointment.Snapshot) error {
	var newPatient any
	if snap.Slots.NewPatient != nil {
		newPatient = *snap.Slots.NewPatient
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointment_states (
			session_id, state, service, appointment_date, appointment_time,
			new_patient, attempts, event_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			service = EXCLUDED.service,
			appointment_date = EXCLUDED.appointment_date,
			appointment_time = EXCLUDED.appointment_time,
			new_patient = EXCLUDED.new_patient,
			attempts = EXCLUDED.attempts,
			event_id = EXCLUDED.event_id,
			updated_at = EXCLUDED.updated_at
	`, snap.SessionID, string(snap.State), snap.Slots.Service, snap.Slots.Date,
		snap.Slots.Time, newPatient, snap.Attempts, snap.EventID, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("conversation: failed to save appointment state: %w", err)
	}
	return nil
}

// RecordEvent appends to the audit log.
func (s *PostgresStore) RecordEvent(ctx context.Context, event TrackingEvent) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		data = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tracking_events (id, session_id, event_type, event_data, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.SessionID, event.EventType, data, event.Timestamp)
	if err != nil {
		return fmt.Errorf("conversation: failed to record event: %w", err)
	}
	return nil
}

// GetSettings reads the singleton switch. A missing row means enabled.
func (s *PostgresStore) GetSettings(ctx context.Context) (GlobalSettings, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT chatbot_enabled FROM global_settings WHERE id = 1`,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return GlobalSettings{ChatbotEnabled: true}, nil
	}
	if err != nil {
		return GlobalSettings{}, fmt.Errorf("conversation: failed to get settings: %w", err)
	}
	return GlobalSettings{ChatbotEnabled: enabled}, nil
}

// UpdateSettings writes the singleton switch.
func (s *PostgresStore) UpdateSettings(ctx context.Context, settings GlobalSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_settings (id, chatbot_enabled, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			chatbot_enabled = EXCLUDED.chatbot_enabled,
			updated_at = EXCLUDED.updated_at
	`, settings.ChatbotEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: failed to update settings: %w", err)
	}
	return nil
}
