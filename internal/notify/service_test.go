package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingSender struct {
	sent map[string]string
	err  error
}

func (r *recordingSender) SendText(ctx context.Context, to, body string) (bool, error) {
	if r.sent == nil {
		r.sent = make(map[string]string)
	}
	r.sent[to] = body
	return r.err == nil, r.err
}

func TestNewConversationFansOut(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"593111", "593222"}, nil)

	svc.NewConversation(context.Background(), "593999999999", "María", "hola")

	if len(sender.sent) != 2 {
		t.Fatalf("sent to %d recipients, want 2", len(sender.sent))
	}
	for to, body := range sender.sent {
		if !strings.Contains(body, "María") || !strings.Contains(body, "hola") {
			t.Errorf("message to %s missing details: %q", to, body)
		}
	}
}

func TestTransferredIncludesSummary(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, []string{"593111"}, nil)

	svc.Transferred(context.Background(), "593999999999", "", "Datos registrados: tratamiento: Botox.")

	body := sender.sent["593111"]
	if !strings.Contains(body, "Botox") {
		t.Errorf("summary not included: %q", body)
	}
	if !strings.Contains(body, "Paciente") {
		t.Errorf("missing fallback name: %q", body)
	}
}

func TestSendFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("down")}
	svc := NewService(sender, []string{"593111", "593222"}, nil)

	svc.NewConversation(context.Background(), "593999999999", "Ana", "hola")

	if len(sender.sent) != 2 {
		t.Fatalf("one failure must not stop the fan-out, sent = %d", len(sender.sent))
	}
}

func TestEmptyRosterIsNoop(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil, nil)
	svc.Transferred(context.Background(), "x", "y", "z")
	if len(sender.sent) != 0 {
		t.Error("empty roster should send nothing")
	}
}
