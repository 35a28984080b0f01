package intelligence

import (
	"context"
	"strings"
	"time"

	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/providers/llm"
)

// FallbackFollowUpMessage is sent when generation fails or no provider is
// configured. Plain and safe in any conversation state.
const FallbackFollowUpMessage = "Oi! Passando para saber se você ainda tem interesse. Posso ajudar com alguma dúvida?"

// Generator writes follow-up message bodies from the stored context snapshot.
type Generator struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider, timeout: 20 * time.Second}
}

// FollowUpMessage returns a message body and whether it came from the model.
// It always returns something usable.
func (g *Generator) FollowUpMessage(ctx context.Context, memories []models.ChatMemory, intentName, contextForMessage, urgencyHook, originalMessage string) (string, bool) {
	if g.provider == nil {
		return FallbackFollowUpMessage, false
	}

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.provider.Complete(genCtx, generationSystemPrompt,
		buildGenerationPrompt(memories, intentName, contextForMessage, urgencyHook, originalMessage))
	if err != nil {
		return FallbackFollowUpMessage, false
	}

	body := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if body == "" {
		return FallbackFollowUpMessage, false
	}
	return body, true
}
