package intelligence

import "github.com/zapfunil/zapfunil/internal/intent"

const (
	SentimentNeutral = "neutral"

	// DefaultAIConfidence replaces a missing or wrong-typed confidence on an
	// AI-supplied intent.
	DefaultAIConfidence = 0.7
)

// ExtractedMemory is a durable fact the pipeline wants upserted for the
// conversation.
type ExtractedMemory struct {
	Key        string  `json:"key"`
	MemoryType string  `json:"type"`
	Value      string  `json:"value"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

// FollowUpPlan is the scheduling decision attached to a result.
type FollowUpPlan struct {
	ShouldSchedule    bool   `json:"should_schedule"`
	DelayMinutes      int    `json:"delay_minutes"`
	ContextForMessage string `json:"context_for_message"`
	UrgencyHook       string `json:"urgency_hook"`
}

// Result is the merged outcome of the local pattern pass and the optional AI
// pass. The caller persists memories/score/labels and applies the pause flag;
// the result itself has no side effects.
type Result struct {
	Intents         []intent.Detected `json:"intents"`
	Memories        []ExtractedMemory `json:"memories"`
	Sentiment       string            `json:"sentiment"`
	LeadScoreDelta  int               `json:"lead_score_delta"`
	BuyingStage     string            `json:"buying_stage,omitempty"`
	SuggestedLabels []string          `json:"suggested_labels"`
	ShouldPause     bool              `json:"should_pause"`
	PauseReason     string            `json:"pause_reason,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	FollowUp        FollowUpPlan      `json:"follow_up"`
}
