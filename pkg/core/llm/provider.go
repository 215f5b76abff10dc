package llm

import (
	"context"
)

// Provider is the interface for all external language-model services the
// verifier can talk to.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}
