package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zapfunil/zapfunil/internal/models"
)

type MemoryRepo interface {
	Upsert(ctx context.Context, mem *models.ChatMemory) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.ChatMemory, error)
}

type memoryRepo struct {
	db *gorm.DB
}

func NewMemoryRepo(db *gorm.DB) MemoryRepo {
	return &memoryRepo{db: db}
}

// Upsert writes one fact. The (conversation_id, key) unique index guarantees
// a repeat write updates in place instead of inserting a second row.
func (r *memoryRepo) Upsert(ctx context.Context, mem *models.ChatMemory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"memory_type", "value", "context", "confidence", "source_message_id", "updated_at",
			}),
		}).
		Create(mem).Error
}

func (r *memoryRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.ChatMemory, error) {
	var rows []models.ChatMemory
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("key ASC").
		Find(&rows).Error
	return rows, err
}
