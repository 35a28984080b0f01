package intelligence

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zapfunil/zapfunil/internal/intent"
	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/providers/llm"
)

// Resolver decides which of two same-named intents survives the merge.
type Resolver func(local, ai intent.Detected) intent.Detected

// PreferHigherConfidence keeps the AI entry only when its confidence is
// strictly greater than the local one.
func PreferHigherConfidence(local, ai intent.Detected) intent.Detected {
	if ai.Confidence > local.Confidence {
		return ai
	}
	return local
}

// Features are the per-instance toggles that gate the AI pass.
type Features struct {
	EnableMemory    bool
	EnableFollowUps bool
	EnableAutoLabel bool
}

func (f Features) anyEnabled() bool {
	return f.EnableMemory || f.EnableFollowUps || f.EnableAutoLabel
}

// Input is everything one analysis needs. OrgID is threaded through
// explicitly; the extractor holds no per-organization state.
type Input struct {
	OrgID               string
	ConversationHistory string
	MessageText         string
	Memories            []models.ChatMemory
	Features            Features
}

// Extractor merges the deterministic pattern pass with a best-effort AI pass.
// A nil provider means the AI pass is disabled and every analysis is
// local-only.
type Extractor struct {
	matcher   *intent.Matcher
	provider  llm.Provider
	resolver  Resolver
	log       *logrus.Logger
	aiTimeout time.Duration
}

func NewExtractor(matcher *intent.Matcher, provider llm.Provider, log *logrus.Logger) *Extractor {
	if matcher == nil {
		matcher = intent.NewMatcher(nil)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Extractor{
		matcher:   matcher,
		provider:  provider,
		resolver:  PreferHigherConfidence,
		log:       log,
		aiTimeout: 20 * time.Second,
	}
}

// WithResolver swaps the intent conflict policy.
func (e *Extractor) WithResolver(r Resolver) *Extractor {
	if r != nil {
		e.resolver = r
	}
	return e
}

// Analyze classifies one inbound message. It never fails: any AI problem
// (missing credential, network, malformed JSON) degrades to the local-only
// result.
func (e *Extractor) Analyze(ctx context.Context, in Input) *Result {
	local := e.matcher.Match(in.MessageText)

	if e.provider == nil || !in.Features.anyEnabled() {
		return e.localOnly(local)
	}

	aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	raw, err := e.provider.Complete(aiCtx, extractionSystemPrompt, buildUserPrompt(in.Memories, in.ConversationHistory, in.MessageText))
	if err != nil {
		e.log.WithError(err).WithField("org_id", in.OrgID).Warn("ai extraction failed, using local result")
		return e.localOnly(local)
	}

	ai, err := decodeAIResult(raw)
	if err != nil {
		e.log.WithError(err).WithField("org_id", in.OrgID).Warn("ai reply not parseable, using local result")
		return e.localOnly(local)
	}

	return e.merge(local, ai)
}

// localOnly derives every result field from the pattern table alone.
func (e *Extractor) localOnly(local []intent.Detected) *Result {
	out := &Result{
		Intents:         local,
		Sentiment:       SentimentNeutral,
		LeadScoreDelta:  e.localScoreDelta(local),
		SuggestedLabels: e.localLabels(local),
	}

	if d, ok := e.pauseIntent(local); ok {
		out.ShouldPause = true
		out.PauseReason = "customer asked for a human (" + d.Name + ")"
	}

	out.FollowUp = e.localFollowUp(local)
	return out
}

// merge overlays the AI result on the local one. Intents merge by name
// through the resolver; every other field comes from the AI when present and
// falls back to the local derivation when absent.
func (e *Extractor) merge(local []intent.Detected, ai *aiResult) *Result {
	byName := make(map[string]int, len(local))
	merged := make([]intent.Detected, len(local))
	copy(merged, local)
	for i, d := range merged {
		byName[d.Name] = i
	}

	for _, it := range ai.Intents {
		candidate := intent.Detected{
			Name:                 it.Name,
			Confidence:           it.Confidence,
			FollowUpDelayMinutes: it.FollowUpDelayMinutes,
		}
		if def, ok := e.matcher.Lookup(it.Name); ok && candidate.FollowUpDelayMinutes == 0 {
			candidate.FollowUpDelayMinutes = def.FollowUpDelayMinutes
		}

		if i, ok := byName[it.Name]; ok {
			merged[i] = e.resolver(merged[i], candidate)
			continue
		}
		byName[it.Name] = len(merged)
		merged = append(merged, candidate)
	}

	out := &Result{
		Intents:     merged,
		Memories:    ai.Memories,
		Sentiment:   ai.Sentiment,
		BuyingStage: ai.BuyingStage,
		Summary:     ai.Summary,
	}

	if ai.LeadScoreDelta != nil {
		out.LeadScoreDelta = *ai.LeadScoreDelta
	} else {
		out.LeadScoreDelta = e.localScoreDelta(merged)
	}

	if ai.Labels != nil {
		out.SuggestedLabels = ai.Labels
	} else {
		out.SuggestedLabels = e.localLabels(merged)
	}

	if ai.ShouldPause != nil {
		out.ShouldPause = *ai.ShouldPause
		out.PauseReason = ai.PauseReason
	} else if d, ok := e.pauseIntent(merged); ok {
		out.ShouldPause = true
		out.PauseReason = "customer asked for a human (" + d.Name + ")"
	}

	if ai.FollowUp != nil {
		out.FollowUp = *ai.FollowUp
	} else {
		out.FollowUp = e.localFollowUp(merged)
	}

	return out
}

func (e *Extractor) localScoreDelta(intents []intent.Detected) int {
	total := 0
	for _, d := range intents {
		if def, ok := e.matcher.Lookup(d.Name); ok {
			total += def.ScoreDelta
		}
	}
	return total
}

func (e *Extractor) localLabels(intents []intent.Detected) []string {
	var labels []string
	seen := map[string]bool{}
	for _, d := range intents {
		def, ok := e.matcher.Lookup(d.Name)
		if !ok || def.Label == "" || seen[def.Label] {
			continue
		}
		seen[def.Label] = true
		labels = append(labels, def.Label)
	}
	return labels
}

func (e *Extractor) pauseIntent(intents []intent.Detected) (intent.Detected, bool) {
	for _, d := range intents {
		if d.Name == "wants_human" {
			return d, true
		}
	}
	return intent.Detected{}, false
}

// localFollowUp schedules off the first matched intent with a nonzero delay.
func (e *Extractor) localFollowUp(intents []intent.Detected) FollowUpPlan {
	for _, d := range intents {
		if d.FollowUpDelayMinutes <= 0 {
			continue
		}
		return FollowUpPlan{
			ShouldSchedule:    true,
			DelayMinutes:      d.FollowUpDelayMinutes,
			ContextForMessage: "customer intent: " + d.Name,
		}
	}
	return FollowUpPlan{}
}
