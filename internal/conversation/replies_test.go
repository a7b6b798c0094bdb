package conversation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReplyUsesModel(t *testing.T) {
	r := NewReplySynthesizer(&fakeLLM{text: "Atendemos de 9 a 19."}, time.Second, nil)
	got := r.Reply(context.Background(), CategoryTechnical, "¿horario?", nil)
	if got.Text != "Atendemos de 9 a 19." {
		t.Errorf("text = %q", got.Text)
	}
	if got.TokensUsed != 7 {
		t.Errorf("tokens = %d", got.TokensUsed)
	}
}

func TestReplyApologizesOnFailure(t *testing.T) {
	r := NewReplySynthesizer(&fakeLLM{err: errors.New("down")}, time.Second, nil)
	got := r.Reply(context.Background(), CategoryMedical, "¿me sirve?", nil)
	if got.Text != ApologyMessage {
		t.Errorf("text = %q, want apology", got.Text)
	}
}

func TestReplyApologizesWithoutModel(t *testing.T) {
	r := NewReplySynthesizer(nil, time.Second, nil)
	got := r.Reply(context.Background(), CategoryGeneral, "hola", nil)
	if got.Text != ApologyMessage {
		t.Errorf("text = %q, want apology", got.Text)
	}
}
