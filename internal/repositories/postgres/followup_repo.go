package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type FollowUpRepo interface {
	Insert(ctx context.Context, fu *models.FollowUp) error
	GetByID(ctx context.Context, id string) (*models.FollowUp, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.FollowUp, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.FollowUp, error)
	CountActive(ctx context.Context, conversationID string) (int64, error)
	CancelPending(ctx context.Context, conversationID string) (int64, error)

	// Claim atomically transitions pending -> processing, stamping claimed_at.
	// Returns false when another worker already owns the row.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	// Release puts a claimed row back to pending for a later tick.
	Release(ctx context.Context, id string, triggerAt time.Time, retryCount int) error
	// ReleaseStale frees processing rows whose lease expired (a crashed tick).
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	// CacheGenerated stores the body produced for a claimed row. Written before
	// the send, so a retry after a failed send reuses the same text.
	CacheGenerated(ctx context.Context, id, body string) error
	MarkSent(ctx context.Context, id, sentMessageID string) error
	MarkFailed(ctx context.Context, id string, retryCount int) error
}

type followUpRepo struct {
	db *gorm.DB
}

func NewFollowUpRepo(db *gorm.DB) FollowUpRepo {
	return &followUpRepo{db: db}
}

func (r *followUpRepo) Insert(ctx context.Context, fu *models.FollowUp) error {
	return r.db.WithContext(ctx).Create(fu).Error
}

func (r *followUpRepo) GetByID(ctx context.Context, id string) (*models.FollowUp, error) {
	var row models.FollowUp
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *followUpRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.FollowUp, error) {
	var rows []models.FollowUp
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("trigger_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *followUpRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.FollowUp, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.FollowUp
	err := r.db.WithContext(ctx).
		Where("status = ? AND trigger_at <= ?", models.FollowUpPending, now).
		Order("trigger_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountActive counts pending plus sent rows, the number the scheduler checks
// against the per-conversation cap.
func (r *followUpRepo) CountActive(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("conversation_id = ? AND status IN ?", conversationID,
			[]string{models.FollowUpPending, models.FollowUpSent}).
		Count(&n).Error
	return n, err
}

func (r *followUpRepo) CancelPending(ctx context.Context, conversationID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("conversation_id = ? AND status = ?", conversationID, models.FollowUpPending).
		Updates(map[string]any{
			"status":     models.FollowUpCancelled,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *followUpRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("id = ? AND status = ?", id, models.FollowUpPending).
		Updates(map[string]any{
			"status":     models.FollowUpProcessing,
			"claimed_at": now,
			"updated_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *followUpRepo) Release(ctx context.Context, id string, triggerAt time.Time, retryCount int) error {
	return r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("id = ? AND status = ?", id, models.FollowUpProcessing).
		Updates(map[string]any{
			"status":      models.FollowUpPending,
			"trigger_at":  triggerAt,
			"retry_count": retryCount,
			"claimed_at":  nil,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *followUpRepo) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("status = ? AND claimed_at < ?", models.FollowUpProcessing, olderThan).
		Updates(map[string]any{
			"status":     models.FollowUpPending,
			"claimed_at": nil,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *followUpRepo) CacheGenerated(ctx context.Context, id, body string) error {
	return r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("id = ? AND status = ?", id, models.FollowUpProcessing).
		Updates(map[string]any{
			"generated_message": body,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *followUpRepo) MarkSent(ctx context.Context, id, sentMessageID string) error {
	return r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("id = ? AND status = ?", id, models.FollowUpProcessing).
		Updates(map[string]any{
			"status":          models.FollowUpSent,
			"sent_message_id": sentMessageID,
			"claimed_at":      nil,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *followUpRepo) MarkFailed(ctx context.Context, id string, retryCount int) error {
	return r.db.WithContext(ctx).
		Model(&models.FollowUp{}).
		Where("id = ? AND status = ?", id, models.FollowUpProcessing).
		Updates(map[string]any{
			"status":      models.FollowUpFailed,
			"retry_count": retryCount,
			"claimed_at":  nil,
			"updated_at":  time.Now().UTC(),
		}).Error
}
