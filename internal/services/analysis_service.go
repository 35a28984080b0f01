package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/models"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/utils"
)

// InboundMessage is one webhook-delivered customer message.
type InboundMessage struct {
	InstanceID        string
	Phone             string
	Body              string
	ProviderMessageID string
	Payload           []byte
}

type AnalysisService interface {
	// Analyze runs the pattern+AI pipeline without side effects. The caller
	// persists the result.
	Analyze(ctx context.Context, orgID, historyText, messageText string, memories []models.ChatMemory, features intelligence.Features) *intelligence.Result

	// ProcessInbound is the webhook path: persist the message, analyze it,
	// and apply the result (memories, score delta, labels, pause flag,
	// follow-up scheduling).
	ProcessInbound(ctx context.Context, in InboundMessage) (*intelligence.Result, error)
}

type analysisService struct {
	extractor     *intelligence.Extractor
	instances     pgrepo.InstanceRepo
	conversations pgrepo.ConversationRepo
	messages      pgrepo.MessageRepo
	memories      MemoryService
	scores        LeadScoreService
	labels        LabelService
	followUps     FollowUpService
	audit         pgrepo.AuditRepo
	log           *logrus.Logger
}

func NewAnalysisService(
	extractor *intelligence.Extractor,
	instances pgrepo.InstanceRepo,
	conversations pgrepo.ConversationRepo,
	messages pgrepo.MessageRepo,
	memories MemoryService,
	scores LeadScoreService,
	labels LabelService,
	followUps FollowUpService,
	audit pgrepo.AuditRepo,
	log *logrus.Logger,
) AnalysisService {
	if log == nil {
		log = logrus.New()
	}
	return &analysisService{
		extractor:     extractor,
		instances:     instances,
		conversations: conversations,
		messages:      messages,
		memories:      memories,
		scores:        scores,
		labels:        labels,
		followUps:     followUps,
		audit:         audit,
		log:           log,
	}
}

func (s *analysisService) Analyze(ctx context.Context, orgID, historyText, messageText string, memories []models.ChatMemory, features intelligence.Features) *intelligence.Result {
	return s.extractor.Analyze(ctx, intelligence.Input{
		OrgID:               orgID,
		ConversationHistory: historyText,
		MessageText:         messageText,
		Memories:            memories,
		Features:            features,
	})
}

func (s *analysisService) ProcessInbound(ctx context.Context, in InboundMessage) (*intelligence.Result, error) {
	const op = "AnalysisService.ProcessInbound"

	if in.InstanceID == "" || in.Phone == "" || in.Body == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "instance_id, phone, and body are required", nil)
	}

	instance, err := s.instances.GetByID(ctx, in.InstanceID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "instance not found", err)
	}

	conv, err := s.conversations.GetOrCreateByPhone(ctx, instance.ID, in.Phone)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve conversation", err)
	}

	msg := &models.Message{
		ID:                uuid.NewString(),
		ConversationID:    conv.ID,
		Direction:         models.DirectionInbound,
		Body:              in.Body,
		ProviderMessageID: in.ProviderMessageID,
		Payload:           in.Payload,
		Timestamp:         time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save inbound message", err)
	}

	features := intelligence.Features{}
	var settings *models.AutomationSettings
	if st, err := s.instances.GetSettings(ctx, instance.ID); err == nil {
		settings = st
		features = intelligence.Features{
			EnableMemory:    st.EnableMemory,
			EnableFollowUps: st.EnableFollowUps,
			EnableAutoLabel: st.EnableAutoLabel,
		}
	}

	known, err := s.memories.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.messages.ListRecent(ctx, conv.ID, 20)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load history", err)
	}

	result := s.Analyze(ctx, instance.OrgID, formatHistory(recent), in.Body, known, features)

	if err := s.apply(ctx, conv, settings, msg, result, features); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"intents":         intentNames(result),
		"score_delta":     result.LeadScoreDelta,
		"should_pause":    result.ShouldPause,
	}).Info("inbound message analyzed")

	return result, nil
}

// apply persists the analysis outcome. Storage errors propagate unchanged;
// only the AI pass itself is best-effort.
func (s *analysisService) apply(ctx context.Context, conv *models.Conversation, settings *models.AutomationSettings, msg *models.Message, result *intelligence.Result, features intelligence.Features) error {
	const op = "AnalysisService.apply"

	if features.EnableMemory && len(result.Memories) > 0 {
		if err := s.memories.UpsertBatch(ctx, conv.ID, result.Memories, &msg.ID); err != nil {
			return err
		}
	}

	if result.LeadScoreDelta != 0 {
		factors := map[string]float64{}
		for _, d := range result.Intents {
			factors["intent:"+d.Name] = d.Confidence
		}
		if _, err := s.scores.ApplyDelta(ctx, conv.ID, result.LeadScoreDelta, factors, result.BuyingStage); err != nil {
			return err
		}
	}

	if features.EnableAutoLabel {
		for _, name := range result.SuggestedLabels {
			if err := s.labels.AssignByName(ctx, conv.ID, name, "intent"); err != nil {
				return err
			}
		}
	}

	if result.ShouldPause {
		reason := result.PauseReason
		if err := s.conversations.SetPause(ctx, conv.ID, true, &reason); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to pause conversation", err)
		}
		// A human is taking over; pending nudges would be out of context.
		if _, err := s.followUps.CancelPending(ctx, conv.ID); err != nil {
			return err
		}
	}

	if features.EnableFollowUps && !result.ShouldPause {
		intentName := primaryIntent(result)
		if _, err := s.followUps.Schedule(ctx, conv.ID, intentName, msg.Body, result.FollowUp, settings); err != nil {
			return err
		}
	}

	err := s.audit.Insert(ctx, &models.AuditLog{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Actor:          "analysis_pipeline",
		Action:         "message_analyzed",
		Intent:         primaryIntent(result),
		Preview:        utils.Truncate(msg.Body, 120),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", conv.ID).Error("failed to write audit entry")
	}

	return nil
}

func formatHistory(recent []models.Message) string {
	// Repo returns newest first; the prompt reads top-down.
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Direction == models.DirectionInbound {
			b.WriteString("customer: ")
		} else {
			b.WriteString("agent: ")
		}
		b.WriteString(m.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func primaryIntent(result *intelligence.Result) string {
	best := ""
	bestConf := -1.0
	for _, d := range result.Intents {
		if d.Confidence > bestConf {
			best = d.Name
			bestConf = d.Confidence
		}
	}
	return best
}

func intentNames(result *intelligence.Result) []string {
	names := make([]string, 0, len(result.Intents))
	for _, d := range result.Intents {
		names = append(names, d.Name)
	}
	return names
}
