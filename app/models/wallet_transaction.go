package models

import "time"

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeRefund     = "refund"
	TransactionTypeTransfer   = "transfer"
	TransactionTypeAdjustment = "adjustment"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// WalletTransaction is one balance-affecting entry. ExternalRef carries the
// provider-side object id (payment intent, refund, transfer) and is unique,
// so re-applying the same provider object is rejected at the storage layer.
// Rows are immutable once written except for Status and FailureReason.
type WalletTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Type          string    `gorm:"type:varchar(20);not null;index" json:"type"`
	AmountCents   int64     `gorm:"not null" json:"amount_cents"`
	ExternalRef   string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_ref"`
	TransferID    string    `gorm:"type:varchar(191);index" json:"transfer_id"`
	Status        string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Reason        string    `gorm:"type:varchar(255)" json:"reason"`
	FailureReason string    `gorm:"type:text" json:"failure_reason"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
