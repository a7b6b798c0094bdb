package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Category is the closed set of message intents.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryAppointment
	CategoryTechnical
	CategoryMedical
)

// String names the category for logs and audit events.
func (c Category) String() string {
	switch c {
	case CategoryAppointment:
		return "appointment"
	case CategoryTechnical:
		return "technical"
	case CategoryMedical:
		return "medical"
	case CategoryGeneral:
		return "general"
	default:
		return "general"
	}
}

// Classification is the classifier verdict for one message.
type Classification struct {
	Category   Category
	Confidence float64
}

const classifierInstructions = `Eres un clasificador de mensajes para una clínica dermatológica.
Clasifica el mensaje del paciente en exactamente una de estas categorías y responde solo con la palabra:
- cita: quiere agendar, cambiar o preguntar por una cita
- tecnica: precios, horarios, ubicación, formas de pago, promociones
- medica: preguntas sobre tratamientos, piel, procedimientos o síntomas
- general: saludos, agradecimientos o cualquier otra cosa`

// Classifier assigns a category to each message outside a live booking
// flow. The model verdict is preferred; any provider failure falls back
// to the keyword table.
type Classifier struct {
	llm     LLMClient
	timeout time.Duration
	logger  *logging.Logger
}

// NewClassifier builds a classifier. A nil llm means keyword-only.
func NewClassifier(llm LLMClient, timeout time.Duration, logger *logging.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{llm: llm, timeout: timeout, logger: logger}
}

// Classify returns the category for the message.
func (c *Classifier) Classify(ctx context.Context, text string, history []Message) Classification {
	if c.llm != nil {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		completion, err := c.llm.Complete(cctx, classifierInstructions, history, text)
		if err == nil {
			if category, ok := parseVerdict(completion.Text); ok {
				return Classification{Category: category, Confidence: 0.9}
			}
		} else {
			c.logger.Warn("conversation: classifier model failed, using keywords", "error", err)
		}
	}
	return keywordClassify(text)
}

func parseVerdict(out string) (Category, bool) {
	verdict := strings.ToLower(strings.TrimSpace(out))
	verdict = strings.Trim(verdict, ".¡!\"' ")
	switch {
	case strings.HasPrefix(verdict, "cita"):
		return CategoryAppointment, true
	case strings.HasPrefix(verdict, "tecnica"), strings.HasPrefix(verdict, "técnica"):
		return CategoryTechnical, true
	case strings.HasPrefix(verdict, "medica"), strings.HasPrefix(verdict, "médica"):
		return CategoryMedical, true
	case strings.HasPrefix(verdict, "general"):
		return CategoryGeneral, true
	}
	return CategoryGeneral, false
}

var keywordRules = []struct {
	category Category
	words    []string
}{
	{CategoryAppointment, []string{"cita", "agendar", "agenda", "reservar", "reserva", "turno", "disponibilidad", "agendarme"}},
	{CategoryTechnical, []string{"precio", "costo", "cuanto cuesta", "horario", "direccion", "ubicacion", "donde estan", "promocion", "pago", "tarjeta"}},
	{CategoryMedical, []string{"tratamiento", "piel", "acne", "mancha", "arruga", "duele", "dolor", "efecto", "recomiendan", "sirve para", "cicatriz"}},
}

func keywordClassify(text string) Classification {
	folded := foldText(text)
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(folded, w) {
				return Classification{Category: rule.category, Confidence: 0.6}
			}
		}
	}
	return Classification{Category: CategoryGeneral, Confidence: 0.5}
}

// foldText lowercases and strips Spanish diacritics.
func foldText(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	)
	return replacer.Replace(s)
}
