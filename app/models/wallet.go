package models

import "time"

// Wallet is the balance row for a single user. Balance mutations must go
// through the wallet service, which locks this row per user.
type Wallet struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents int64     `gorm:"not null;default:0" json:"balance_cents"`
	PendingCents int64     `gorm:"not null;default:0" json:"pending_cents"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
