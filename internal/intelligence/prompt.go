package intelligence

import (
	"strings"

	"github.com/zapfunil/zapfunil/internal/models"
)

const extractionSystemPrompt = `You analyze one inbound customer message from a sales conversation.

Reply with ONLY a valid JSON object, no text outside it, in this shape:

{
  "intents": [{"name": "...", "confidence": 0.0, "follow_up_delay_minutes": 0}],
  "memories": [{"key": "...", "type": "...", "value": "...", "context": "...", "confidence": 0.0}],
  "sentiment": "positive|neutral|negative",
  "lead_score_delta": 0,
  "buying_stage": "...",
  "labels": ["..."],
  "should_pause": false,
  "pause_reason": "",
  "summary": "...",
  "follow_up": {"should_schedule": false, "delay_minutes": 0, "context_for_message": "", "urgency_hook": ""}
}

Rules:
- intents: customer purposes you are confident about, confidence in [0,1].
- memories: durable facts only (name, budget, decision maker, timeline). Key is a stable snake_case identifier.
- should_pause: true only when the customer clearly asks for a human.
- follow_up: schedule only when the customer deferred the decision and a later nudge would help.
- lead_score_delta: between -30 and 30.`

// buildUserPrompt assembles known facts, a window of recent history, and the
// new message into one user turn.
func buildUserPrompt(memories []models.ChatMemory, history, message string) string {
	var b strings.Builder

	b.WriteString("Known facts about this customer:\n")
	if len(memories) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m.Key)
		b.WriteString(": ")
		b.WriteString(m.Value)
		if m.Context != "" {
			b.WriteString(" (")
			b.WriteString(m.Context)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRecent conversation:\n")
	if strings.TrimSpace(history) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(history)
		b.WriteString("\n")
	}

	b.WriteString("\nNew customer message:\n")
	b.WriteString(message)
	return b.String()
}

const generationSystemPrompt = `You write one short follow-up message for a sales conversation on a chat app.

Rules:
- Write in the customer's language.
- One or two sentences, friendly, no pressure, no emojis overload.
- Reference the context you are given; never invent facts.
- Reply with the message text only, no quotes, no JSON.`

// buildGenerationPrompt feeds the stored context snapshot to the model when a
// follow-up has no cached body.
func buildGenerationPrompt(memories []models.ChatMemory, intentName, contextForMessage, urgencyHook, originalMessage string) string {
	var b strings.Builder

	b.WriteString("Known facts:\n")
	if len(memories) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m.Key)
		b.WriteString(": ")
		b.WriteString(m.Value)
		b.WriteString("\n")
	}

	b.WriteString("\nDetected intent: ")
	b.WriteString(intentName)
	b.WriteString("\nWhat the customer said: ")
	b.WriteString(originalMessage)
	if contextForMessage != "" {
		b.WriteString("\nContext for the message: ")
		b.WriteString(contextForMessage)
	}
	if urgencyHook != "" {
		b.WriteString("\nUrgency hook: ")
		b.WriteString(urgencyHook)
	}
	b.WriteString("\n\nWrite the follow-up message now.")
	return b.String()
}
