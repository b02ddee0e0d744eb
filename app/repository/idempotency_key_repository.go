package repository

import (
	"context"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// idempotencyKeyRepository implements the IdempotencyKeyRepository interface
type idempotencyKeyRepository struct {
	db *gorm.DB
}

// NewIdempotencyKeyRepository creates a new idempotency key repository instance
func NewIdempotencyKeyRepository(db *gorm.DB) IdempotencyKeyRepository {
	return &idempotencyKeyRepository{db: db}
}

// CreateIfNotExists inserts the key row; created=false means another request
// already holds (or completed under) this key.
func (r *idempotencyKeyRepository) CreateIfNotExists(ctx context.Context, key *models.IdempotencyKey) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(key)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Delete removes the key row so a legitimate retry can claim it again.
func (r *idempotencyKeyRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("`key` = ?", key).Delete(&models.IdempotencyKey{}).Error
}

func (r *idempotencyKeyRepository) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.IdempotencyKey{}).Where("`key` = ?", key).Count(&count).Error
	return count > 0, err
}
