package conversation

import "context"

// Completion is one model response.
type Completion struct {
	Text       string
	TokensUsed int
}

// LLMClient produces completions for classification and free-form replies.
type LLMClient interface {
	Complete(ctx context.Context, system string, history []Message, userText string) (Completion, error)
}
