package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/zapfunil/zapfunil/internal/models"
)

type AuditRepo interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.AuditLog, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) Insert(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
