package repository

import (
	"context"
	"time"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless a row with the same
// (provider, provider_event_id) already exists. The unique index makes the
// check-and-insert atomic under concurrent delivery; both racers see the same
// stored row afterwards and exactly one of them gets created=true.
func (r *webhookEventRepository) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkProcessed flips processed_at exactly once, on handler success.
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// RecordFailure stores the handler error but leaves processed_at NULL so a
// provider retry re-attempts the handler instead of being skipped as a
// duplicate.
func (r *webhookEventRepository) RecordFailure(ctx context.Context, id uint, processingError string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processing_error", processingError).Error
}

func (r *webhookEventRepository) GetByProviderEventID(ctx context.Context, provider, providerEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListUnprocessed returns the oldest events still awaiting side effects,
// for operator backlog triage.
func (r *webhookEventRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).Where("processed_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
