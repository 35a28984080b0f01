package services

import (
	"context"

	"github.com/zapfunil/zapfunil/internal/models"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type LabelService interface {
	AssignByName(ctx context.Context, conversationID, name, source string) error
	RemoveByName(ctx context.Context, conversationID, name string) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Label, error)
}

type labelService struct {
	labels pgrepo.LabelRepo
}

func NewLabelService(labels pgrepo.LabelRepo) LabelService {
	return &labelService{labels: labels}
}

func (s *labelService) AssignByName(ctx context.Context, conversationID, name, source string) error {
	const op = "LabelService.AssignByName"

	if conversationID == "" || name == "" {
		return utils.E(utils.CodeInvalidArgument, op, "conversation_id and name are required", nil)
	}

	label, err := s.labels.GetOrCreateByName(ctx, name)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to resolve label", err)
	}
	if err := s.labels.Assign(ctx, conversationID, label.ID, source); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to assign label", err)
	}
	return nil
}

func (s *labelService) RemoveByName(ctx context.Context, conversationID, name string) error {
	const op = "LabelService.RemoveByName"

	if conversationID == "" || name == "" {
		return utils.E(utils.CodeInvalidArgument, op, "conversation_id and name are required", nil)
	}

	label, err := s.labels.GetOrCreateByName(ctx, name)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to resolve label", err)
	}
	if err := s.labels.Unassign(ctx, conversationID, label.ID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to remove label", err)
	}
	return nil
}

func (s *labelService) ListByConversation(ctx context.Context, conversationID string) ([]models.Label, error) {
	const op = "LabelService.ListByConversation"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	rows, err := s.labels.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list labels", err)
	}
	return rows, nil
}
