package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zapfunil/zapfunil/internal/models"
)

type LabelRepo interface {
	GetOrCreateByName(ctx context.Context, name string) (*models.Label, error)
	Assign(ctx context.Context, conversationID, labelID, source string) error
	Unassign(ctx context.Context, conversationID, labelID string) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Label, error)
}

type labelRepo struct {
	db *gorm.DB
}

func NewLabelRepo(db *gorm.DB) LabelRepo {
	return &labelRepo{db: db}
}

func (r *labelRepo) GetOrCreateByName(ctx context.Context, name string) (*models.Label, error) {
	row := models.Label{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Attrs(row).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Assign is idempotent: re-assigning an existing pair refreshes source and
// assigned_at instead of inserting a duplicate.
func (r *labelRepo) Assign(ctx context.Context, conversationID, labelID, source string) error {
	row := models.ConversationLabel{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		LabelID:        labelID,
		Source:         source,
		AssignedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "label_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source", "assigned_at"}),
		}).
		Create(&row).Error
}

func (r *labelRepo) Unassign(ctx context.Context, conversationID, labelID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND label_id = ?", conversationID, labelID).
		Delete(&models.ConversationLabel{}).Error
}

func (r *labelRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Label, error) {
	var rows []models.Label
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_labels cl ON cl.label_id = labels.id").
		Where("cl.conversation_id = ?", conversationID).
		Order("labels.name ASC").
		Find(&rows).Error
	return rows, err
}
