package intelligence

import (
	"encoding/json"
	"errors"
)

var errNoJSON = errors.New("intelligence: no JSON object in completion")

// extractJSONBlock returns the first balanced {...} block in s. Models wrap
// their JSON in prose often enough that this cannot be an error path.
func extractJSONBlock(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return "", errNoJSON
}

// aiResult is the lenient decode of the model's reply. Pointer fields
// distinguish "absent" from zero so the merge step knows when to fall back
// to local-only values.
type aiResult struct {
	Intents        []aiIntent
	Memories       []ExtractedMemory
	Sentiment      string
	LeadScoreDelta *int
	BuyingStage    string
	Labels         []string
	ShouldPause    *bool
	PauseReason    string
	Summary        string
	FollowUp       *FollowUpPlan
}

type aiIntent struct {
	Name                 string
	Confidence           float64
	FollowUpDelayMinutes int
}

// decodeAIResult tolerates missing or wrong-typed fields: each one falls back
// to its default instead of failing the whole object.
func decodeAIResult(raw string) (*aiResult, error) {
	block, err := extractJSONBlock(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return nil, err
	}

	out := &aiResult{Sentiment: SentimentNeutral}

	if s, ok := decodeString(fields["sentiment"]); ok && s != "" {
		out.Sentiment = s
	}
	if n, ok := decodeInt(fields["lead_score_delta"]); ok {
		out.LeadScoreDelta = &n
	}
	out.BuyingStage, _ = decodeString(fields["buying_stage"])
	out.PauseReason, _ = decodeString(fields["pause_reason"])
	out.Summary, _ = decodeString(fields["summary"])
	if b, ok := decodeBool(fields["should_pause"]); ok {
		out.ShouldPause = &b
	}

	if raw, ok := fields["labels"]; ok {
		var labels []string
		if json.Unmarshal(raw, &labels) == nil {
			out.Labels = labels
		}
	}

	if raw, ok := fields["intents"]; ok {
		var items []map[string]json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			for _, it := range items {
				name, _ := decodeString(it["name"])
				if name == "" {
					continue
				}
				conf, ok := decodeFloat(it["confidence"])
				if !ok || conf < 0 || conf > 1 {
					conf = DefaultAIConfidence
				}
				delay, _ := decodeInt(it["follow_up_delay_minutes"])
				out.Intents = append(out.Intents, aiIntent{
					Name:                 name,
					Confidence:           conf,
					FollowUpDelayMinutes: delay,
				})
			}
		}
	}

	if raw, ok := fields["memories"]; ok {
		var items []map[string]json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			for _, it := range items {
				key, _ := decodeString(it["key"])
				value, _ := decodeString(it["value"])
				if key == "" || value == "" {
					continue
				}
				conf, ok := decodeFloat(it["confidence"])
				if !ok || conf <= 0 || conf > 1 {
					conf = DefaultAIConfidence
				}
				memType, _ := decodeString(it["type"])
				context, _ := decodeString(it["context"])
				out.Memories = append(out.Memories, ExtractedMemory{
					Key:        key,
					MemoryType: memType,
					Value:      value,
					Context:    context,
					Confidence: conf,
				})
			}
		}
	}

	if raw, ok := fields["follow_up"]; ok {
		var fu map[string]json.RawMessage
		if json.Unmarshal(raw, &fu) == nil {
			plan := &FollowUpPlan{}
			plan.ShouldSchedule, _ = decodeBool(fu["should_schedule"])
			plan.DelayMinutes, _ = decodeInt(fu["delay_minutes"])
			plan.ContextForMessage, _ = decodeString(fu["context_for_message"])
			plan.UrgencyHook, _ = decodeString(fu["urgency_hook"])
			out.FollowUp = plan
		}
	}

	return out, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	if raw == nil {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

func decodeFloat(raw json.RawMessage) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func decodeInt(raw json.RawMessage) (int, bool) {
	f, ok := decodeFloat(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}
