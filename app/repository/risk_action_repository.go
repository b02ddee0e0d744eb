package repository

import (
	"context"
	"time"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
)

// riskActionRepository implements the RiskActionRepository interface
type riskActionRepository struct {
	db *gorm.DB
}

// NewRiskActionRepository creates a new risk action repository instance
func NewRiskActionRepository(db *gorm.DB) RiskActionRepository {
	return &riskActionRepository{db: db}
}

func (r *riskActionRepository) Create(ctx context.Context, action *models.RiskAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *riskActionRepository) GetByUUID(ctx context.Context, actionUUID string) (*models.RiskAction, error) {
	var action models.RiskAction
	err := r.db.WithContext(ctx).Where("action_uuid = ?", actionUUID).First(&action).Error
	if err != nil {
		return nil, err
	}
	return &action, nil
}

func (r *riskActionRepository) ListByUser(ctx context.Context, userID uint) ([]models.RiskAction, error) {
	var actions []models.RiskAction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Find(&actions).Error
	return actions, err
}

func (r *riskActionRepository) List(ctx context.Context, offset, limit int) ([]models.RiskAction, error) {
	var actions []models.RiskAction
	err := r.db.WithContext(ctx).Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&actions).Error
	return actions, err
}

func (r *riskActionRepository) Resolve(ctx context.Context, actionUUID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.RiskAction{}).Where("action_uuid = ?", actionUUID).
		Updates(map[string]interface{}{
			"status":      models.RiskActionStatusResolved,
			"resolved_at": &now,
		}).Error
}
