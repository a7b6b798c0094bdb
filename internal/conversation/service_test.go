package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/saludbioskin/chatbot-engine/internal/appointment"
)

type stubCalendar struct {
	available bool
	eventID   string
}

func (s *stubCalendar) CheckAvailability(ctx context.Context, date, timeOfDay string) (bool, error) {
	return s.available, nil
}

func (s *stubCalendar) CreateAppointment(ctx context.Context, req appointment.CreateRequest) (string, error) {
	return s.eventID, nil
}

func (s *stubCalendar) SuggestAlternatives(ctx context.Context, date string) ([]string, error) {
	return []string{"11:00"}, nil
}

type stubSender struct {
	sent []string
	to   []string
	err  error
}

func (s *stubSender) SendText(ctx context.Context, to, body string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.to = append(s.to, to)
	s.sent = append(s.sent, body)
	return true, nil
}

type stubNotifier struct {
	newConversations int
	transfers        []string
}

func (s *stubNotifier) NewConversation(ctx context.Context, senderAddress, senderName, firstMessage string) {
	s.newConversations++
}

func (s *stubNotifier) Transferred(ctx context.Context, senderAddress, senderName, summary string) {
	s.transfers = append(s.transfers, summary)
}

type engineFixture struct {
	engine   *Engine
	store    *FallbackStore
	sender   *stubSender
	notifier *stubNotifier
}

func newEngineFixture(t *testing.T, llm LLMClient, maxAttempts int) *engineFixture {
	t.Helper()
	store := NewFallbackStore()
	sender := &stubSender{}
	notifier := &stubNotifier{}
	machine := appointment.NewMachine(&stubCalendar{available: true, eventID: "evt-1"}, maxAttempts, time.UTC, nil)

	engine := NewEngine(EngineDeps{
		Store:      store,
		Classifier: NewClassifier(llm, time.Second, nil),
		Replies:    NewReplySynthesizer(llm, time.Second, nil),
		Machine:    machine,
		Sender:     sender,
		Notifier:   notifier,
	})
	return &engineFixture{engine: engine, store: store, sender: sender, notifier: notifier}
}

func inbound(text, providerID string) Inbound {
	return Inbound{
		Sender:            "593999999999",
		SenderName:        "María",
		Text:              text,
		ProviderMessageID: providerID,
		Timestamp:         time.Now().UTC(),
	}
}

func TestAppointmentIntentStartsFlow(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "cita"}, 3)
	ctx := context.Background()

	if err := f.engine.HandleInbound(ctx, inbound("quiero una cita", "wamid.1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	snap, _ := f.store.GetOrInitAppointmentState(ctx, SessionID("593999999999"))
	if snap.State != appointment.StateCollectingService {
		t.Fatalf("state = %s, want %s", snap.State, appointment.StateCollectingService)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "tratamiento") {
		t.Errorf("reply = %v", f.sender.sent)
	}
}

func TestFlowStartMarksFirstVisit(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "cita"}, 3)
	ctx := context.Background()

	f.engine.HandleInbound(ctx, inbound("quiero una cita", "wamid.fv1"))

	snap, _ := f.store.GetOrInitAppointmentState(ctx, SessionID("593999999999"))
	if snap.Slots.NewPatient == nil || !*snap.Slots.NewPatient {
		t.Errorf("first flow should mark a new patient, got %+v", snap.Slots.NewPatient)
	}
}

func TestRebookingAfterBookedIsNotFirstVisit(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "cita"}, 3)
	ctx := context.Background()
	sessionID := SessionID("593999999999")

	booked := appointment.NewSnapshot(sessionID)
	booked.State = appointment.StateBooked
	booked.EventID = "evt-old"
	f.store.SaveAppointmentState(ctx, booked)

	f.engine.HandleInbound(ctx, inbound("quiero otra cita", "wamid.fv2"))

	snap, _ := f.store.GetOrInitAppointmentState(ctx, sessionID)
	if snap.State != appointment.StateCollectingService {
		t.Fatalf("state = %s, want a fresh flow", snap.State)
	}
	if snap.Slots.NewPatient == nil || *snap.Slots.NewPatient {
		t.Errorf("a patient with a booking on record is not new, got %+v", snap.Slots.NewPatient)
	}
}

func TestDuplicateDeliveryIsNoop(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	ctx := context.Background()

	f.engine.HandleInbound(ctx, inbound("hola", "wamid.dup"))
	f.engine.HandleInbound(ctx, inbound("hola", "wamid.dup"))

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d replies, want 1", len(f.sender.sent))
	}
}

func TestDisabledSwitchSilencesBot(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	f.store.CacheSettings(GlobalSettings{ChatbotEnabled: false})

	f.engine.HandleInbound(context.Background(), inbound("hola", "wamid.2"))

	if len(f.sender.sent) != 0 {
		t.Errorf("disabled bot must not reply, sent = %v", f.sender.sent)
	}
}

func TestActiveFlowBypassesClassifier(t *testing.T) {
	// The model would call this "general", but a live flow owns the message.
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	ctx := context.Background()
	sessionID := SessionID("593999999999")

	snap := appointment.NewSnapshot(sessionID)
	snap.State = appointment.StateCollectingService
	f.store.SaveAppointmentState(ctx, snap)

	f.engine.HandleInbound(ctx, inbound("botox", "wamid.3"))

	loaded, _ := f.store.GetOrInitAppointmentState(ctx, sessionID)
	if loaded.State != appointment.StateCollectingDate {
		t.Fatalf("state = %s, want %s", loaded.State, appointment.StateCollectingDate)
	}
	if loaded.Slots.Service != "Botox" {
		t.Errorf("service = %q", loaded.Slots.Service)
	}
}

func TestTransferNotifiesStaffWithSummary(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 1)
	ctx := context.Background()
	sessionID := SessionID("593999999999")

	snap := appointment.NewSnapshot(sessionID)
	snap.State = appointment.StateCollectingDate
	snap.Slots.Service = "Botox"
	f.store.SaveAppointmentState(ctx, snap)

	f.engine.HandleInbound(ctx, inbound("no sé qué día", "wamid.4"))

	loaded, _ := f.store.GetOrInitAppointmentState(ctx, sessionID)
	if loaded.State != appointment.StateTransferred {
		t.Fatalf("state = %s, want %s", loaded.State, appointment.StateTransferred)
	}
	if len(f.notifier.transfers) != 1 || !strings.Contains(f.notifier.transfers[0], "Botox") {
		t.Errorf("transfers = %v", f.notifier.transfers)
	}
}

func TestFirstMessageNotifiesNewConversation(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	ctx := context.Background()

	f.engine.HandleInbound(ctx, inbound("hola", "wamid.5"))
	f.engine.HandleInbound(ctx, inbound("buenas", "wamid.6"))

	if f.notifier.newConversations != 1 {
		t.Errorf("new conversation alerts = %d, want 1", f.notifier.newConversations)
	}
}

func TestGeneralMessageGetsModelReply(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	ctx := context.Background()

	f.engine.HandleInbound(ctx, inbound("buenos días", "wamid.7"))

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent = %d", len(f.sender.sent))
	}

	history, _ := f.store.GetHistory(ctx, SessionID("593999999999"), 10)
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want user + assistant", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestSendFailureSurfacesButMessagePersists(t *testing.T) {
	f := newEngineFixture(t, &fakeLLM{text: "general"}, 3)
	f.sender.err = errors.New("channel down")
	ctx := context.Background()

	err := f.engine.HandleInbound(ctx, inbound("hola", "wamid.8"))
	if err == nil {
		t.Fatal("expected send error")
	}

	history, _ := f.store.GetHistory(ctx, SessionID("593999999999"), 10)
	if len(history) != 2 {
		t.Errorf("history = %d messages, reply should be persisted before send", len(history))
	}
}

// Durable store outage: the patient-visible flow must be identical, served
// from the fallback mirror.
func TestStoreOutageServesIdenticalFlow(t *testing.T) {
	primary := &failingStore{}
	fallback := NewFallbackStore()
	store := NewFailoverStore(primary, fallback, 50*time.Millisecond, time.Hour, nil)
	sender := &stubSender{}
	machine := appointment.NewMachine(&stubCalendar{available: true}, 3, time.UTC, nil)

	engine := NewEngine(EngineDeps{
		Store:      store,
		Degraded:   store.Degraded,
		Classifier: NewClassifier(&fakeLLM{text: "cita"}, time.Second, nil),
		Replies:    NewReplySynthesizer(&fakeLLM{text: "hola"}, time.Second, nil),
		Machine:    machine,
		Sender:     sender,
	})

	if err := engine.HandleInbound(context.Background(), inbound("quiero una cita", "wamid.9")); err != nil {
		t.Fatalf("handle during outage: %v", err)
	}

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "tratamiento") {
		t.Fatalf("reply = %v", sender.sent)
	}
	if !store.Degraded() {
		t.Error("store should report degraded")
	}

	snap, _ := fallback.GetOrInitAppointmentState(context.Background(), SessionID("593999999999"))
	if snap.State != appointment.StateCollectingService {
		t.Errorf("fallback state = %s", snap.State)
	}
}
