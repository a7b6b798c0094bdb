package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
)

// FallbackStore is a process-local mirror used while the durable store is
// unreachable. Contents are volatile and drained back once the database
// recovers.
type FallbackStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message
	providerIDs   map[string]map[string]struct{}
	states        map[string]*appointment.Snapshot
	events        []TrackingEvent
	settings      GlobalSettings
	hasSettings   bool
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore creates an empty mirror.
func NewFallbackStore() *FallbackStore {
	return &FallbackStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
		providerIDs:   make(map[string]map[string]struct{}),
		states:        make(map[string]*appointment.Snapshot),
	}
}

func (s *FallbackStore) UpsertConversation(_ context.Context, sessionID, senderAddress, senderName string) (*Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if conv, ok := s.conversations[sessionID]; ok {
		conv.LastMessageAt = now
		conv.IsActive = true
		if senderName != "" {
			conv.SenderName = senderName
		}
		copied := *conv
		return &copied, false, nil
	}

	conv := &Conversation{
		SessionID:     sessionID,
		SenderAddress: senderAddress,
		SenderName:    senderName,
		CreatedAt:     now,
		LastMessageAt: now,
		IsActive:      true,
	}
	s.conversations[sessionID] = conv
	copied := *conv
	return &copied, true, nil
}

func (s *FallbackStore) AppendMessage(_ context.Context, msg Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ProviderMessageID != "" {
		seen, ok := s.providerIDs[msg.SessionID]
		if !ok {
			seen = make(map[string]struct{})
			s.providerIDs[msg.SessionID] = seen
		}
		if _, dup := seen[msg.ProviderMessageID]; dup {
			return false, nil
		}
		seen[msg.ProviderMessageID] = struct{}{}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	if conv, ok := s.conversations[msg.SessionID]; ok {
		conv.TotalMessages++
		conv.LastMessageAt = msg.Timestamp
	}
	return true, nil
}

func (s *FallbackStore) GetHistory(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *FallbackStore) GetOrInitAppointmentState(_ context.Context, sessionID string) (*appointment.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.states[sessionID]; ok {
		copied := *snap
		return &copied, nil
	}
	fresh := appointment.NewSnapshot(sessionID)
	s.states[sessionID] = fresh
	copied := *fresh
	return &copied, nil
}

func (s *FallbackStore) SaveAppointmentState(_ context.Context, snap *appointment.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *snap
	s.states[snap.SessionID] = &copied
	return nil
}

func (s *FallbackStore) RecordEvent(_ context.Context, event TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// GetSettings returns the last settings observed from the durable store,
// defaulting to enabled so a database outage never silences the bot.
func (s *FallbackStore) GetSettings(_ context.Context) (GlobalSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hasSettings {
		return s.settings, nil
	}
	return GlobalSettings{ChatbotEnabled: true}, nil
}

// CacheSettings remembers the durable store's settings for outages.
func (s *FallbackStore) CacheSettings(settings GlobalSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	s.hasSettings = true
}

// Pending reports how many buffered writes await resync.
func (s *FallbackStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.events)
	for _, msgs := range s.messages {
		total += len(msgs)
	}
	return total
}

// Drained holds everything buffered during an outage.
type Drained struct {
	Conversations []Conversation
	Messages      []Message
	States        []appointment.Snapshot
	Events        []TrackingEvent
}

// Drain removes and returns all buffered writes.
func (s *FallbackStore) Drain() Drained {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d Drained
	for _, conv := range s.conversations {
		d.Conversations = append(d.Conversations, *conv)
	}
	for _, msgs := range s.messages {
		d.Messages = append(d.Messages, msgs...)
	}
	for _, snap := range s.states {
		d.States = append(d.States, *snap)
	}
	d.Events = append(d.Events, s.events...)

	s.conversations = make(map[string]*Conversation)
	s.messages = make(map[string][]Message)
	s.providerIDs = make(map[string]map[string]struct{})
	s.states = make(map[string]*appointment.Snapshot)
	s.events = nil
	return d
}

// Restore puts writes that could not be replayed back into the mirror.
// Entries written after the drain win over the restored copies; restored
// messages keep their place before anything buffered since.
func (s *FallbackStore) Restore(d Drained) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range d.Conversations {
		if _, ok := s.conversations[conv.SessionID]; ok {
			continue
		}
		copied := conv
		s.conversations[conv.SessionID] = &copied
	}

	restored := make(map[string][]Message)
	for _, msg := range d.Messages {
		restored[msg.SessionID] = append(restored[msg.SessionID], msg)
		if msg.ProviderMessageID != "" {
			seen, ok := s.providerIDs[msg.SessionID]
			if !ok {
				seen = make(map[string]struct{})
				s.providerIDs[msg.SessionID] = seen
			}
			seen[msg.ProviderMessageID] = struct{}{}
		}
	}
	for sessionID, msgs := range restored {
		s.messages[sessionID] = append(msgs, s.messages[sessionID]...)
	}

	for _, snap := range d.States {
		if _, ok := s.states[snap.SessionID]; ok {
			continue
		}
		copied := snap
		s.states[snap.SessionID] = &copied
	}
	s.events = append(append([]TrackingEvent{}, d.Events...), s.events...)
}
