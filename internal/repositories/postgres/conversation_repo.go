package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type ConversationRepo interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetOrCreateByPhone(ctx context.Context, instanceID, phone string) (*models.Conversation, error)
	SetPause(ctx context.Context, id string, paused bool, reason *string) error
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *conversationRepo) GetOrCreateByPhone(ctx context.Context, instanceID, phone string) (*models.Conversation, error) {
	now := time.Now().UTC()
	row := models.Conversation{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Phone:      phone,
		AIActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND phone = ?", instanceID, phone).
		Attrs(row).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetPause flips automation on or off. paused=false clears the reason, which
// is how the worker reactivates a conversation after a follow-up goes out.
func (r *conversationRepo) SetPause(ctx context.Context, id string, paused bool, reason *string) error {
	updates := map[string]any{
		"ai_active":        !paused,
		"ai_paused_reason": nil,
		"updated_at":       time.Now().UTC(),
	}
	if paused {
		updates["ai_paused_reason"] = reason
	}

	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
