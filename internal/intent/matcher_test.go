package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchScenarios(t *testing.T) {
	m := NewMatcher(nil)

	tests := []struct {
		name       string
		text       string
		wantIntent string
		wantDelay  int
		wantLabel  string
		wantDelta  int
	}{
		{
			name:       "spouse check",
			text:       "vou ver com minha esposa",
			wantIntent: "check_with_spouse",
			wantDelay:  30,
			wantLabel:  "Aguardando",
			wantDelta:  5,
		},
		{
			name:       "ready to buy",
			text:       "quero fechar, manda o contrato",
			wantIntent: "ready_to_buy",
			wantDelay:  0,
			wantLabel:  "Quente",
			wantDelta:  30,
		},
		{
			name:       "not interested",
			text:       "não tenho mais interesse",
			wantIntent: "not_interested",
			wantDelay:  0,
			wantLabel:  "Frio",
			wantDelta:  -30,
		},
		{
			name:       "wants a human",
			text:       "quero falar com atendente",
			wantIntent: "wants_human",
			wantDelay:  0,
			wantLabel:  "Atendimento Humano",
			wantDelta:  0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Match(tc.text)
			require.Len(t, got, 1)
			require.Equal(t, tc.wantIntent, got[0].Name)
			require.Equal(t, LocalConfidence, got[0].Confidence)
			require.Equal(t, tc.wantDelay, got[0].FollowUpDelayMinutes)
			require.Equal(t, tc.text, got[0].SourceText)

			def, ok := m.Lookup(tc.wantIntent)
			require.True(t, ok)
			require.Equal(t, tc.wantLabel, def.Label)
			require.Equal(t, tc.wantDelta, def.ScoreDelta)
		})
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	m := NewMatcher(nil)

	got := m.Match("QUERO FECHAR agora mesmo")
	require.Len(t, got, 1)
	require.Equal(t, "ready_to_buy", got[0].Name)
}

func TestMatchMultipleIntents(t *testing.T) {
	m := NewMatcher(nil)

	got := m.Match("bom dia! quanto custa o plano? vou ver com minha esposa depois")
	names := make([]string, 0, len(got))
	for _, d := range got {
		names = append(names, d.Name)
	}
	require.ElementsMatch(t, []string{"greeting", "price_question", "check_with_spouse"}, names)
}

func TestMatchFirstPatternWinsPerIntent(t *testing.T) {
	table := []Definition{
		{
			Name:     "custom",
			Patterns: []string{"primeiro", "segundo"},
		},
	}
	m := NewMatcher(table)

	// both patterns present: only one detection, from the first pattern
	got := m.Match("segundo e primeiro juntos")
	require.Len(t, got, 1)
	require.Equal(t, "primeiro", got[0].Context["pattern"])
}

func TestMatchDeterministic(t *testing.T) {
	m := NewMatcher(nil)
	text := "bom dia, quanto custa? vou pensar"

	first := m.Match(text)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, m.Match(text))
	}
}

func TestMatchNoHit(t *testing.T) {
	m := NewMatcher(nil)
	require.Empty(t, m.Match("mensagem totalmente neutra"))
	require.Empty(t, m.Match("   "))
}
