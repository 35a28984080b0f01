package intent

import "strings"

// Matcher classifies message text against a pattern table. It is stateless
// and deterministic: the same text always yields the same detections.
type Matcher struct {
	table []Definition
}

func NewMatcher(table []Definition) *Matcher {
	if len(table) == 0 {
		table = DefaultTable
	}
	return &Matcher{table: table}
}

// Match returns every intent whose pattern list hits the text. Per intent,
// evaluation stops at the first matching pattern; a message can still match
// several distinct intents.
func (m *Matcher) Match(text string) []Detected {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	var out []Detected
	for _, def := range m.table {
		for _, p := range def.Patterns {
			if !strings.Contains(normalized, p) {
				continue
			}
			out = append(out, Detected{
				Name:                 def.Name,
				Confidence:           LocalConfidence,
				FollowUpDelayMinutes: def.FollowUpDelayMinutes,
				SourceText:           text,
				Context:              map[string]string{"pattern": p},
			})
			break
		}
	}
	return out
}

// Lookup finds a definition by intent name.
func (m *Matcher) Lookup(name string) (Definition, bool) {
	for _, def := range m.table {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
