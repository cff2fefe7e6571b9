package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateLimitState records the last successful accrual per member and reward
// type. It is a dedicated row rather than a field on Member so the cooldown
// clock is not tangled up with unrelated profile updates, and so the row can
// serve as the per-member lock for ledger transactions.
type RateLimitState struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	MemberID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rate_limit_member_type,priority:1" json:"member_id"`
	RewardType    string    `gorm:"not null;uniqueIndex:idx_rate_limit_member_type,priority:2" json:"reward_type"`
	LastAccrualAt time.Time `json:"last_accrual_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r *RateLimitState) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
