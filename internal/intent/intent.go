package intent

// LocalConfidence is the trust weight attached to every pattern match.
const LocalConfidence = 0.85

// Definition is one named intent with its matchers and the actions it implies.
// The table is plain data so it can be swapped per locale without touching
// the matcher.
type Definition struct {
	Name                 string
	Patterns             []string // ordered; first match wins for this intent
	FollowUpDelayMinutes int
	Label                string
	ScoreDelta           int
}

// Detected is one classified customer purpose. Ephemeral: it is merged,
// acted on, and discarded, never persisted as its own row.
type Detected struct {
	Name                 string
	Confidence           float64 // in [0,1]
	FollowUpDelayMinutes int
	SourceText           string
	Context              map[string]string
}
