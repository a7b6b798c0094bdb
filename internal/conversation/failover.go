package conversation

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// FailoverStore fronts the durable store with a deadline and a breaker.
// When the durable store errors or exceeds the deadline, the request is
// served from the in-process fallback and subsequent requests skip the
// durable store until a probe succeeds.
type FailoverStore struct {
	primary  Store
	fallback *FallbackStore
	timeout  time.Duration
	probe    time.Duration
	tracer   trace.Tracer
	logger   *logging.Logger

	degraded    atomic.Bool
	lastFailure atomic.Int64
}

var _ Store = (*FailoverStore)(nil)

// NewFailoverStore wraps the durable store. probe is how long the breaker
// stays open before the next durable attempt.
func NewFailoverStore(primary Store, fallback *FallbackStore, timeout, probe time.Duration, logger *logging.Logger) *FailoverStore {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if probe <= 0 {
		probe = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		probe:    probe,
		tracer:   otel.Tracer("chatbot.internal.conversation.failover"),
		logger:   logger,
	}
}

// Degraded reports whether requests are currently served from the
// fallback mirror.
func (f *FailoverStore) Degraded() bool {
	return f.degraded.Load()
}

func (f *FailoverStore) allowPrimary() bool {
	if !f.degraded.Load() {
		return true
	}
	last := time.Unix(0, f.lastFailure.Load())
	return time.Since(last) >= f.probe
}

func (f *FailoverStore) trip(err error) {
	f.lastFailure.Store(time.Now().UnixNano())
	if f.degraded.CompareAndSwap(false, true) {
		f.logger.Error("conversation: durable store unavailable, switching to fallback", "error", err)
	}
}

func (f *FailoverStore) restore() {
	if f.degraded.CompareAndSwap(true, false) {
		f.logger.Info("conversation: durable store recovered",
			"pending_writes", f.fallback.Pending())
	}
}

// try runs op against the durable store under the deadline. It reports
// whether the result can be used.
func (f *FailoverStore) try(ctx context.Context, span trace.Span, op func(context.Context) error) bool {
	if !f.allowPrimary() {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := op(cctx); err != nil {
		span.RecordError(err)
		f.trip(err)
		return false
	}
	f.restore()
	return true
}

func (f *FailoverStore) UpsertConversation(ctx context.Context, sessionID, senderAddress, senderName string) (*Conversation, bool, error) {
	ctx, span := f.tracer.Start(ctx, "store.upsert_conversation")
	defer span.End()

	var conv *Conversation
	var isNew bool
	ok := f.try(ctx, span, func(c context.Context) error {
		var err error
		conv, isNew, err = f.primary.UpsertConversation(c, sessionID, senderAddress, senderName)
		return err
	})
	if ok {
		return conv, isNew, nil
	}
	return f.fallback.UpsertConversation(ctx, sessionID, senderAddress, senderName)
}

func (f *FailoverStore) AppendMessage(ctx context.Context, msg Message) (bool, error) {
	ctx, span := f.tracer.Start(ctx, "store.append_message")
	defer span.End()

	var stored bool
	ok := f.try(ctx, span, func(c context.Context) error {
		var err error
		stored, err = f.primary.AppendMessage(c, msg)
		return err
	})
	if ok {
		return stored, nil
	}
	return f.fallback.AppendMessage(ctx, msg)
}

func (f *FailoverStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	ctx, span := f.tracer.Start(ctx, "store.get_history")
	defer span.End()

	var history []Message
	ok := f.try(ctx, span, func(c context.Context) error {
		var err error
		history, err = f.primary.GetHistory(c, sessionID, limit)
		return err
	})
	if ok {
		return history, nil
	}
	return f.fallback.GetHistory(ctx, sessionID, limit)
}

func (f *FailoverStore) GetOrInitAppointmentState(ctx context.Context, sessionID string) (*appointment.Snapshot, error) {
	ctx, span := f.tracer.Start(ctx, "store.get_appointment_state")
	defer span.End()

	var snap *appointment.Snapshot
	ok := f.try(ctx, span, func(c context.Context) error {
		var err error
		snap, err = f.primary.GetOrInitAppointmentState(c, sessionID)
		return err
	})
	if ok {
		return snap, nil
	}
	return f.fallback.GetOrInitAppointmentState(ctx, sessionID)
}

func (f *FailoverStore) SaveAppointmentState(ctx context.Context, snap *appointment.Snapshot) error {
	ctx, span := f.tracer.Start(ctx, "store.save_appointment_state")
	defer span.End()

	ok := f.try(ctx, span, func(c context.Context) error {
		return f.primary.SaveAppointmentState(c, snap)
	})
	if ok {
		return nil
	}
	return f.fallback.SaveAppointmentState(ctx, snap)
}

func (f *FailoverStore) RecordEvent(ctx context.Context, event TrackingEvent) error {
	ctx, span := f.tracer.Start(ctx, "store.record_event")
	defer span.End()

	ok := f.try(ctx, span, func(c context.Context) error {
		return f.primary.RecordEvent(c, event)
	})
	if ok {
		return nil
	}
	return f.fallback.RecordEvent(ctx, event)
}

func (f *FailoverStore) GetSettings(ctx context.Context) (GlobalSettings, error) {
	ctx, span := f.tracer.Start(ctx, "store.get_settings")
	defer span.End()

	var settings GlobalSettings
	ok := f.try(ctx, span, func(c context.Context) error {
		var err error
		settings, err = f.primary.GetSettings(c)
		return err
	})
	if ok {
		f.fallback.CacheSettings(settings)
		return settings, nil
	}
	return f.fallback.GetSettings(ctx)
}

// Resync drains fallback writes into the durable store. It is a no-op
// while the breaker is open or nothing is buffered. Replayed messages
// reuse AppendMessage idempotency, so a write that landed before the
// breaker tripped is not duplicated.
func (f *FailoverStore) Resync(ctx context.Context) error {
	if f.Degraded() {
		return nil
	}

	drained := f.fallback.Drain()
	if len(drained.Conversations) == 0 && len(drained.Messages) == 0 &&
		len(drained.States) == 0 && len(drained.Events) == 0 {
		return nil
	}

	f.logger.Info("conversation: resyncing fallback writes",
		"conversations", len(drained.Conversations),
		"messages", len(drained.Messages),
		"events", len(drained.Events))

	// On a mid-sweep failure the unwritten remainder goes back into the
	// fallback and waits for the next sweep.
	fail := func(err error) error {
		f.fallback.Restore(drained)
		f.trip(err)
		return err
	}

	for len(drained.Conversations) > 0 {
		conv := drained.Conversations[0]
		if _, _, err := f.primary.UpsertConversation(ctx, conv.SessionID, conv.SenderAddress, conv.SenderName); err != nil {
			return fail(err)
		}
		drained.Conversations = drained.Conversations[1:]
	}
	for len(drained.Messages) > 0 {
		if _, err := f.primary.AppendMessage(ctx, drained.Messages[0]); err != nil {
			return fail(err)
		}
		drained.Messages = drained.Messages[1:]
	}
	for len(drained.States) > 0 {
		copied := drained.States[0]
		if err := f.primary.SaveAppointmentState(ctx, &copied); err != nil {
			return fail(err)
		}
		drained.States = drained.States[1:]
	}
	for len(drained.Events) > 0 {
		if err := f.primary.RecordEvent(ctx, drained.Events[0]); err != nil {
			return fail(err)
		}
		drained.Events = drained.Events[1:]
	}
	return nil
}

// RunResyncLoop sweeps on the interval until the context is cancelled.
func (f *FailoverStore) RunResyncLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.Degraded() {
				continue
			}
			if err := f.Resync(ctx); err != nil {
				f.logger.Warn("conversation: resync sweep failed", "error", err)
			}
		}
	}
}
