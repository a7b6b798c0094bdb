package notify

import (
	"context"
	"fmt"

	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Sender delivers a text to one recipient over the channel.
type Sender interface {
	SendText(ctx context.Context, to, body string) (bool, error)
}

// Service broadcasts staff alerts to the configured roster. Delivery
// failures are logged per recipient and never bubble up to the patient
// flow.
type Service struct {
	sender Sender
	roster []string
	logger *logging.Logger
}

// NewService creates the fan-out service. An empty roster disables it.
func NewService(sender Sender, roster []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, roster: roster, logger: logger}
}

// NewConversation alerts staff that a new patient started chatting.
func (s *Service) NewConversation(ctx context.Context, senderAddress, senderName, firstMessage string) {
	name := senderName
	if name == "" {
		name = "Paciente"
	}
	body := fmt.Sprintf("🔔 Nueva conversación en el chatbot\nPaciente: %s (%s)\nMensaje: %s",
		name, senderAddress, firstMessage)
	s.broadcast(ctx, body)
}

// Transferred alerts staff that the bot handed off a booking attempt,
// including whatever slots were collected.
func (s *Service) Transferred(ctx context.Context, senderAddress, senderName, summary string) {
	name := senderName
	if name == "" {
		name = "Paciente"
	}
	body := fmt.Sprintf("⚠️ Conversación transferida a atención humana\nPaciente: %s (%s)\n%s\nPor favor contactar pronto.",
		name, senderAddress, summary)
	s.broadcast(ctx, body)
}

func (s *Service) broadcast(ctx context.Context, body string) {
	if s == nil || s.sender == nil || len(s.roster) == 0 {
		return
	}
	for _, recipient := range s.roster {
		if _, err := s.sender.SendText(ctx, recipient, body); err != nil {
			s.logger.Error("notify: failed to alert staff member",
				"recipient", recipient, "error", err)
		}
	}
}
