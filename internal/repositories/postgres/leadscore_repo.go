package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type LeadScoreRepo interface {
	GetByConversation(ctx context.Context, conversationID string) (*models.LeadScore, error)
	Upsert(ctx context.Context, score *models.LeadScore) error
}

type leadScoreRepo struct {
	db *gorm.DB
}

func NewLeadScoreRepo(db *gorm.DB) LeadScoreRepo {
	return &leadScoreRepo{db: db}
}

func (r *leadScoreRepo) GetByConversation(ctx context.Context, conversationID string) (*models.LeadScore, error) {
	var row models.LeadScore
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

// Upsert keys on conversation_id so there is always at most one row per
// conversation.
func (r *leadScoreRepo) Upsert(ctx context.Context, score *models.LeadScore) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "temperature", "buying_stage", "factors", "history", "updated_at",
			}),
		}).
		Create(score).Error
}
