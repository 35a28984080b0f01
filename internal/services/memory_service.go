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

type MemoryService interface {
	Upsert(ctx context.Context, conversationID string, mem intelligence.ExtractedMemory, sourceMessageID *string) (*models.ChatMemory, error)
	UpsertBatch(ctx context.Context, conversationID string, mems []intelligence.ExtractedMemory, sourceMessageID *string) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.ChatMemory, error)
}

type memoryService struct {
	memories pgrepo.MemoryRepo
}

func NewMemoryService(memories pgrepo.MemoryRepo) MemoryService {
	return &memoryService{memories: memories}
}

func (s *memoryService) Upsert(ctx context.Context, conversationID string, mem intelligence.ExtractedMemory, sourceMessageID *string) (*models.ChatMemory, error) {
	const op = "MemoryService.Upsert"

	if conversationID == "" || mem.Key == "" || mem.Value == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id, key, and value are required", nil)
	}

	now := time.Now().UTC()
	row := &models.ChatMemory{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		Key:             mem.Key,
		MemoryType:      mem.MemoryType,
		Value:           mem.Value,
		Context:         mem.Context,
		Confidence:      mem.Confidence,
		SourceMessageID: sourceMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.memories.Upsert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to upsert memory", err)
	}
	return row, nil
}

// UpsertBatch writes facts in order. Entries sharing a key overwrite earlier
// ones in the same batch: last write wins.
func (s *memoryService) UpsertBatch(ctx context.Context, conversationID string, mems []intelligence.ExtractedMemory, sourceMessageID *string) error {
	for _, mem := range mems {
		if _, err := s.Upsert(ctx, conversationID, mem, sourceMessageID); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryService) ListByConversation(ctx context.Context, conversationID string) ([]models.ChatMemory, error) {
	const op = "MemoryService.ListByConversation"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	rows, err := s.memories.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list memories", err)
	}
	return rows, nil
}
