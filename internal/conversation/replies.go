package conversation

import (
	"context"
	"time"

	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// ApologyMessage is the only thing a patient sees when the model is down.
const ApologyMessage = "Lo siento, en este momento no puedo responder tu consulta 🙏 Un miembro de nuestro equipo te contactará pronto para ayudarte."

const (
	technicalInstructions = `Eres el asistente virtual de BIOSKIN, una clínica dermatológica en Guayaquil, Ecuador.
Responde en español, de forma breve y amable, preguntas sobre precios, horarios, ubicación y formas de pago.
Horario de atención: lunes a sábado de 9:00 a 19:00. No inventes precios exactos; invita a confirmar en recepción.`

	medicalInstructions = `Eres el asistente virtual de BIOSKIN, una clínica dermatológica en Guayaquil, Ecuador.
Responde en español preguntas generales sobre tratamientos estéticos y cuidado de la piel.
Sé breve y cálido. Nunca des diagnósticos ni indicaciones médicas personalizadas; para eso recomienda una consulta de valoración.`

	generalInstructions = `Eres el asistente virtual de BIOSKIN, una clínica dermatológica en Guayaquil, Ecuador.
Responde saludos y mensajes generales en español, con calidez y brevedad, y ofrece ayuda para agendar una cita si parece oportuno.`
)

// ReplySynthesizer produces the outbound text for non-booking messages.
type ReplySynthesizer struct {
	llm     LLMClient
	timeout time.Duration
	logger  *logging.Logger
}

// NewReplySynthesizer builds the synthesizer. A nil llm always apologizes.
func NewReplySynthesizer(llm LLMClient, timeout time.Duration, logger *logging.Logger) *ReplySynthesizer {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReplySynthesizer{llm: llm, timeout: timeout, logger: logger}
}

// Reply generates a model-backed answer for the category, bounded by the
// configured deadline. Failures yield the fixed apology, never an error
// the patient could see.
func (r *ReplySynthesizer) Reply(ctx context.Context, category Category, text string, history []Message) Completion {
	if r.llm == nil {
		return Completion{Text: ApologyMessage}
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	completion, err := r.llm.Complete(cctx, instructionsFor(category), history, text)
	if err != nil || completion.Text == "" {
		r.logger.Warn("conversation: reply synthesis failed, sending apology",
			"category", category.String(), "error", err)
		return Completion{Text: ApologyMessage}
	}
	return completion
}

func instructionsFor(category Category) string {
	switch category {
	case CategoryTechnical:
		return technicalInstructions
	case CategoryMedical:
		return medicalInstructions
	case CategoryAppointment, CategoryGeneral:
		return generalInstructions
	default:
		return generalInstructions
	}
}
