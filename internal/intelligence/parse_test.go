package intelligence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "prose around",
			in:   "Sure! Here is the JSON you asked for:\n{\"a\":1}\nLet me know if you need anything else.",
			want: `{"a":1}`,
		},
		{
			name: "nested objects",
			in:   `text {"a":{"b":{"c":2}},"d":3} trailing`,
			want: `{"a":{"b":{"c":2}},"d":3}`,
		},
		{
			name: "braces inside strings",
			in:   `{"a":"close } brace","b":"open { brace"}`,
			want: `{"a":"close } brace","b":"open { brace"}`,
		},
		{
			name: "escaped quotes inside strings",
			in:   `{"a":"she said \"}\" loudly"}`,
			want: `{"a":"she said \"}\" loudly"}`,
		},
		{
			name: "markdown fence",
			in:   "```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractJSONBlock(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONBlockErrors(t *testing.T) {
	for _, in := range []string{"", "no json here", "{unterminated"} {
		_, err := extractJSONBlock(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestDecodeAIResultDefaults(t *testing.T) {
	// missing fields: everything defaults instead of failing
	got, err := decodeAIResult(`{}`)
	require.NoError(t, err)
	require.Equal(t, SentimentNeutral, got.Sentiment)
	require.Nil(t, got.LeadScoreDelta)
	require.Nil(t, got.ShouldPause)
	require.Nil(t, got.Labels)
	require.Nil(t, got.FollowUp)
	require.Empty(t, got.Intents)
	require.Empty(t, got.Memories)
}

func TestDecodeAIResultWrongTypes(t *testing.T) {
	raw := `{
		"sentiment": 42,
		"lead_score_delta": "ten",
		"labels": "Quente",
		"should_pause": "yes",
		"intents": [{"name":"ready_to_buy","confidence":"high"}],
		"memories": [{"key":"budget","value":"5k","confidence":7}]
	}`

	got, err := decodeAIResult(raw)
	require.NoError(t, err)

	require.Equal(t, SentimentNeutral, got.Sentiment)
	require.Nil(t, got.LeadScoreDelta)
	require.Nil(t, got.Labels)
	require.Nil(t, got.ShouldPause)

	require.Len(t, got.Intents, 1)
	require.Equal(t, "ready_to_buy", got.Intents[0].Name)
	require.Equal(t, DefaultAIConfidence, got.Intents[0].Confidence)

	require.Len(t, got.Memories, 1)
	require.Equal(t, DefaultAIConfidence, got.Memories[0].Confidence)
}

func TestDecodeAIResultFull(t *testing.T) {
	raw := `noise before {
		"intents": [{"name":"check_with_spouse","confidence":0.92,"follow_up_delay_minutes":45}],
		"memories": [{"key":"decision_maker","type":"fact","value":"esposa","context":"decide junto","confidence":0.9}],
		"sentiment": "positive",
		"lead_score_delta": 8,
		"buying_stage": "consideration",
		"labels": ["Aguardando"],
		"should_pause": false,
		"summary": "customer will check with spouse",
		"follow_up": {"should_schedule": true, "delay_minutes": 45, "context_for_message": "spouse check", "urgency_hook": "promo ends friday"}
	} noise after`

	got, err := decodeAIResult(raw)
	require.NoError(t, err)

	require.Len(t, got.Intents, 1)
	require.Equal(t, 0.92, got.Intents[0].Confidence)
	require.Equal(t, 45, got.Intents[0].FollowUpDelayMinutes)

	require.Len(t, got.Memories, 1)
	require.Equal(t, "decision_maker", got.Memories[0].Key)

	require.Equal(t, "positive", got.Sentiment)
	require.NotNil(t, got.LeadScoreDelta)
	require.Equal(t, 8, *got.LeadScoreDelta)
	require.Equal(t, "consideration", got.BuyingStage)
	require.Equal(t, []string{"Aguardando"}, got.Labels)
	require.NotNil(t, got.ShouldPause)
	require.False(t, *got.ShouldPause)

	require.NotNil(t, got.FollowUp)
	require.True(t, got.FollowUp.ShouldSchedule)
	require.Equal(t, 45, got.FollowUp.DelayMinutes)
	require.Equal(t, "promo ends friday", got.FollowUp.UrgencyHook)
}
