package models

import "time"

// WebhookEvent stores inbound payment provider events with deduplication
// metadata for idempotent processing. Rows are never deleted (audit trail).
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null;index:idx_webhook_events_backlog,priority:1" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index:idx_webhook_events_backlog,priority:2" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const PaymentProviderStripe = "stripe"

// Processed reports whether the event's side effects have been applied.
// A row that exists but is not processed belongs to a failed prior attempt
// and must be retried, not skipped.
func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}
