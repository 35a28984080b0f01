package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type InstanceRepo interface {
	GetByID(ctx context.Context, id string) (*models.Instance, error)
	GetSettings(ctx context.Context, instanceID string) (*models.AutomationSettings, error)
}

type instanceRepo struct {
	db *gorm.DB
}

func NewInstanceRepo(db *gorm.DB) InstanceRepo {
	return &instanceRepo{db: db}
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	var row models.Instance
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *instanceRepo) GetSettings(ctx context.Context, instanceID string) (*models.AutomationSettings, error) {
	var row models.AutomationSettings
	err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
