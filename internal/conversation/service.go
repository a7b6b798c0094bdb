package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
	"github.com/saludbioskin/chatbot-engine/internal/observability/metrics"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// OutboundSender delivers the reply back over the channel.
type OutboundSender interface {
	SendText(ctx context.Context, to, body string) (bool, error)
}

// Notifier alerts staff about conversations that need a human.
type Notifier interface {
	NewConversation(ctx context.Context, senderAddress, senderName, firstMessage string)
	Transferred(ctx context.Context, senderAddress, senderName, summary string)
}

// Engine drives one inbound message end to end: persistence, routing,
// reply generation and delivery.
type Engine struct {
	store        Store
	degraded     func() bool
	classifier   *Classifier
	replies      *ReplySynthesizer
	machine      *appointment.Machine
	sender       OutboundSender
	notifier     Notifier
	cache        *HistoryCache
	metrics      *metrics.EngineMetrics
	historyLimit int
	logger       *logging.Logger
}

// EngineDeps wires the engine's collaborators.
type EngineDeps struct {
	Store        Store
	Degraded     func() bool
	Classifier   *Classifier
	Replies      *ReplySynthesizer
	Machine      *appointment.Machine
	Sender       OutboundSender
	Notifier     Notifier
	Cache        *HistoryCache
	Metrics      *metrics.EngineMetrics
	HistoryLimit int
	Logger       *logging.Logger
}

// NewEngine builds the engine.
func NewEngine(deps EngineDeps) *Engine {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 20
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		store:        deps.Store,
		degraded:     deps.Degraded,
		classifier:   deps.Classifier,
		replies:      deps.Replies,
		machine:      deps.Machine,
		sender:       deps.Sender,
		notifier:     deps.Notifier,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		historyLimit: deps.HistoryLimit,
		logger:       deps.Logger,
	}
}

// HandleInbound processes one channel message. Each delivery is handled
// independently; redelivered messages are absorbed by the append dedup.
func (e *Engine) HandleInbound(ctx context.Context, in Inbound) error {
	started := time.Now()
	defer func() {
		e.metrics.ObserveWebhookLatency(time.Since(started).Seconds())
	}()

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		e.logger.Warn("conversation: failed to read settings, assuming enabled", "error", err)
		settings = GlobalSettings{ChatbotEnabled: true}
	}
	if !settings.ChatbotEnabled {
		e.metrics.ObserveInbound("disabled")
		e.logger.Debug("conversation: chatbot disabled, ignoring message", "sender", in.Sender)
		return nil
	}

	sessionID := SessionID(in.Sender)
	log := e.logger.With("session_id", sessionID)

	conv, isNew, err := e.store.UpsertConversation(ctx, sessionID, in.Sender, in.SenderName)
	if err != nil {
		e.metrics.ObserveInbound("store_error")
		return fmt.Errorf("conversation: failed to upsert conversation: %w", err)
	}

	userMsg := Message{
		SessionID:         sessionID,
		Role:              RoleUser,
		Content:           in.Text,
		Timestamp:         in.Timestamp,
		ProviderMessageID: in.ProviderMessageID,
	}
	stored, err := e.store.AppendMessage(ctx, userMsg)
	if err != nil {
		e.metrics.ObserveInbound("store_error")
		return fmt.Errorf("conversation: failed to append message: %w", err)
	}
	if !stored {
		e.metrics.ObserveInbound("duplicate")
		log.Debug("conversation: duplicate delivery ignored", "provider_message_id", in.ProviderMessageID)
		return nil
	}
	if err := e.cache.Append(ctx, userMsg); err != nil {
		log.Warn("conversation: history cache append failed", "error", err)
	}

	if isNew {
		e.recordEvent(ctx, sessionID, "conversation_started", map[string]any{"sender": in.Sender})
		if e.notifier != nil {
			e.notifier.NewConversation(ctx, in.Sender, in.SenderName, in.Text)
		}
	}

	snap, err := e.store.GetOrInitAppointmentState(ctx, sessionID)
	if err != nil {
		e.metrics.ObserveInbound("store_error")
		return fmt.Errorf("conversation: failed to load appointment state: %w", err)
	}

	patient := appointment.Patient{Name: in.SenderName, Phone: in.Sender}
	if patient.Name == "" && conv != nil {
		patient.Name = conv.SenderName
	}

	reply, tokens, err := e.route(ctx, log, sessionID, snap, in, patient)
	if err != nil {
		return err
	}
	if reply == "" {
		e.metrics.ObserveInbound("no_reply")
		return nil
	}

	assistantMsg := Message{
		SessionID:  sessionID,
		Role:       RoleAssistant,
		Content:    reply,
		Timestamp:  time.Now().UTC(),
		TokensUsed: tokens,
	}
	if _, err := e.store.AppendMessage(ctx, assistantMsg); err != nil {
		log.Error("conversation: failed to persist reply", "error", err)
	}
	if err := e.cache.Append(ctx, assistantMsg); err != nil {
		log.Warn("conversation: history cache append failed", "error", err)
	}

	delivered, err := e.sender.SendText(ctx, in.Sender, reply)
	if err != nil {
		e.metrics.ObserveOutbound("failed")
		return fmt.Errorf("conversation: failed to send reply: %w", err)
	}
	if delivered {
		e.metrics.ObserveOutbound("delivered")
	} else {
		e.metrics.ObserveOutbound("accepted")
	}

	if e.degraded != nil && e.degraded() {
		e.metrics.ObserveDegraded()
		log.Warn("conversation: message served in degraded mode")
	}
	e.metrics.ObserveInbound("processed")
	return nil
}

// route picks between the live booking flow and classified replies.
func (e *Engine) route(ctx context.Context, log *logging.Logger, sessionID string, snap *appointment.Snapshot, in Inbound, patient appointment.Patient) (string, int, error) {
	if snap.State.Active() {
		res := e.machine.Advance(ctx, snap, in.Text, patient)
		return e.settleFlow(ctx, log, sessionID, res, in)
	}

	history := trimCurrent(e.history(ctx, sessionID), in)
	cls := e.classifier.Classify(ctx, in.Text, history)
	e.recordEvent(ctx, sessionID, "intent_classified", map[string]any{
		"category":   cls.Category.String(),
		"confidence": cls.Confidence,
	})

	if cls.Category == CategoryAppointment {
		// No booked appointment on record means a first visit.
		firstVisit := snap.State != appointment.StateBooked
		if snap.State.Terminal() {
			snap = appointment.NewSnapshot(sessionID)
		}
		res := e.machine.Start(snap)
		res.Snapshot.Slots.NewPatient = &firstVisit
		return e.settleFlow(ctx, log, sessionID, res, in)
	}

	completion := e.replies.Reply(ctx, cls.Category, in.Text, history)
	return completion.Text, completion.TokensUsed, nil
}

// settleFlow persists the advanced snapshot and emits flow events.
func (e *Engine) settleFlow(ctx context.Context, log *logging.Logger, sessionID string, res appointment.Result, in Inbound) (string, int, error) {
	if err := e.store.SaveAppointmentState(ctx, res.Snapshot); err != nil {
		e.metrics.ObserveInbound("store_error")
		return "", 0, fmt.Errorf("conversation: failed to save appointment state: %w", err)
	}

	if res.Event != "" {
		data := map[string]any{"state": string(res.Snapshot.State)}
		if res.Snapshot.EventID != "" {
			data["event_id"] = res.Snapshot.EventID
		}
		e.recordEvent(ctx, sessionID, res.Event, data)
	}

	if res.Event == appointment.EventTransferred && e.notifier != nil {
		e.notifier.Transferred(ctx, in.Sender, in.SenderName, appointment.Summary(res.Snapshot.Slots))
		log.Info("conversation: handed off to staff", "state", string(res.Snapshot.State))
	}

	return res.Reply, 0, nil
}

// history prefers the cache and falls back to the store on a miss.
func (e *Engine) history(ctx context.Context, sessionID string) []Message {
	cached, err := e.cache.Recent(ctx, sessionID, e.historyLimit)
	if err == nil && len(cached) > 0 {
		return cached
	}
	history, err := e.store.GetHistory(ctx, sessionID, e.historyLimit)
	if err != nil {
		e.logger.Warn("conversation: failed to load history", "session_id", sessionID, "error", err)
		return nil
	}
	return history
}

// trimCurrent drops the trailing history entry when it is the message
// being processed, so the model does not see it twice.
func trimCurrent(history []Message, in Inbound) []Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == RoleUser && last.Content == in.Text {
			return history[:n-1]
		}
	}
	return history
}

func (e *Engine) recordEvent(ctx context.Context, sessionID, eventType string, data map[string]any) {
	if err := e.store.RecordEvent(ctx, NewTrackingEvent(sessionID, eventType, data)); err != nil {
		e.logger.Warn("conversation: failed to record event",
			"session_id", sessionID, "event_type", eventType, "error", err)
	}
}
