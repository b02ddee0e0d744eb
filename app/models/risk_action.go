package models

import "time"

const (
	RiskActionFlagUser    = "flag_user"
	RiskActionHoldPayouts = "hold_payouts"
	RiskActionClear       = "clear"
)

const (
	RiskActionStatusOpen     = "open"
	RiskActionStatusResolved = "resolved"
)

// RiskAction is a compliance action taken against a user account.
type RiskAction struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ActionUUID string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"action_uuid"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	Action     string     `gorm:"type:varchar(30);not null;index" json:"action" validate:"oneof=flag_user hold_payouts clear"`
	Reason     string     `gorm:"type:text" json:"reason"`
	Status     string     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ResolvedAt *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
