package repository

import (
	"context"
	"time"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
)

// completionRepository implements the CompletionRepository interface
type completionRepository struct {
	db *gorm.DB
}

// NewCompletionRepository creates a new completion repository instance
func NewCompletionRepository(db *gorm.DB) CompletionRepository {
	return &completionRepository{db: db}
}

func (r *completionRepository) Create(ctx context.Context, completion *models.Completion) error {
	return r.db.WithContext(ctx).Create(completion).Error
}

func (r *completionRepository) GetByID(ctx context.Context, id uint) (*models.Completion, error) {
	var completion models.Completion
	err := r.db.WithContext(ctx).First(&completion, id).Error
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

// MarkReleased claims the completion for payout. The released guard in the
// WHERE clause makes the claim atomic: of two concurrent callers exactly one
// sees claimed=true, the other finds the row already flipped.
func (r *completionRepository) MarkReleased(ctx context.Context, id uint, feeCents int64, releaseRef string) (bool, error) {
	now := time.Now()
	tx := r.db.WithContext(ctx).Model(&models.Completion{}).
		Where("id = ? AND released = ?", id, false).
		Updates(map[string]interface{}{
			"released":    true,
			"released_at": &now,
			"fee_cents":   feeCents,
			"release_ref": releaseRef,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
