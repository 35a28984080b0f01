package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/models"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/utils"
)

const defaultMaxActiveFollowUps = 3

type FollowUpService interface {
	// Schedule creates a pending follow-up from a merged analysis result.
	// Returns nil (no error) when the plan says not to schedule or the
	// conversation is at its active cap.
	Schedule(ctx context.Context, conversationID, intentName, originalMessage string, plan intelligence.FollowUpPlan, settings *models.AutomationSettings) (*models.FollowUp, error)
	CancelPending(ctx context.Context, conversationID string) (int64, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.FollowUp, error)
}

type followUpService struct {
	followUps pgrepo.FollowUpRepo
}

func NewFollowUpService(followUps pgrepo.FollowUpRepo) FollowUpService {
	return &followUpService{followUps: followUps}
}

func (s *followUpService) Schedule(ctx context.Context, conversationID, intentName, originalMessage string, plan intelligence.FollowUpPlan, settings *models.AutomationSettings) (*models.FollowUp, error) {
	const op = "FollowUpService.Schedule"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	if !plan.ShouldSchedule || plan.DelayMinutes <= 0 {
		return nil, nil
	}

	maxActive := defaultMaxActiveFollowUps
	maxRetries := 3
	if settings != nil {
		if settings.MaxActiveFollowUps > 0 {
			maxActive = settings.MaxActiveFollowUps
		}
		if settings.FollowUpMaxRetries > 0 {
			maxRetries = settings.FollowUpMaxRetries
		}
	}

	active, err := s.followUps.CountActive(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count active follow-ups", err)
	}
	if active >= int64(maxActive) {
		return nil, nil
	}

	now := time.Now().UTC()
	row := &models.FollowUp{
		ID:                      uuid.NewString(),
		ConversationID:          conversationID,
		TriggerAt:               now.Add(time.Duration(plan.DelayMinutes) * time.Minute),
		Status:                  models.FollowUpPending,
		Type:                    "intent_follow_up",
		DetectedIntent:          intentName,
		ContextForMessage:       plan.ContextForMessage,
		UrgencyHook:             plan.UrgencyHook,
		OriginalCustomerMessage: originalMessage,
		MaxRetries:              maxRetries,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.followUps.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create follow-up", err)
	}
	return row, nil
}

// CancelPending cancels every pending follow-up for the conversation. Called
// when a human takes over or the customer's question resolves, so stale
// nudges never fire.
func (s *followUpService) CancelPending(ctx context.Context, conversationID string) (int64, error) {
	const op = "FollowUpService.CancelPending"

	if conversationID == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	n, err := s.followUps.CancelPending(ctx, conversationID)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to cancel follow-ups", err)
	}
	return n, nil
}

func (s *followUpService) ListByConversation(ctx context.Context, conversationID string) ([]models.FollowUp, error) {
	const op = "FollowUpService.ListByConversation"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	rows, err := s.followUps.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list follow-ups", err)
	}
	return rows, nil
}
