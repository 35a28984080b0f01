package llm

import "context"

// Provider is the external completion service. It returns free text; all
// JSON-shape validation happens on the caller side.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
