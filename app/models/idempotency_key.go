package models

import "time"

// IdempotencyKey guards direct client-triggered mutations (not webhooks).
// The row is inserted before processing and deleted again on failure; a row
// that survives is the completion marker for its key.
type IdempotencyKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
