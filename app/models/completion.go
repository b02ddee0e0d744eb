package models

import "time"

// Completion is an accepted bounty submission awaiting (or past) payout
// release. ReleaseRef points at the wallet transaction created on release.
type Completion struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BountyID     uint       `gorm:"index;not null" json:"bounty_id"`
	HunterUserID uint       `gorm:"index;not null" json:"hunter_user_id"`
	PosterUserID uint       `gorm:"index;not null" json:"poster_user_id"`
	AmountCents  int64      `gorm:"not null" json:"amount_cents"`
	FeeCents     int64      `gorm:"not null;default:0" json:"fee_cents"`
	Released     bool       `gorm:"default:false;index" json:"released"`
	ReleasedAt   *time.Time `gorm:"type:timestamp;default:null" json:"released_at,omitempty"`
	ReleaseRef   string     `gorm:"type:varchar(191)" json:"release_ref"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
