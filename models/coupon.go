package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponKind distinguishes the two discount tiers a stamp card can fund.
type CouponKind string

const (
	CouponKindFull CouponKind = "full" // free trip
	CouponKindHalf CouponKind = "half" // half-price trip
)

func (k CouponKind) Valid() bool {
	return k == CouponKindFull || k == CouponKindHalf
}

// Coupon is a reward synthesized when a member's live ledger entries cross a
// configured threshold. The entries that funded it stay linked via
// LedgerEntry.CouponID and remain permanently consumed, even if the coupon
// is later recalled.
type Coupon struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	MemberID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"member_id"`
	Member        Member        `gorm:"foreignKey:MemberID" json:"-"`
	RewardType    string        `gorm:"not null" json:"reward_type"`
	Kind          CouponKind    `gorm:"not null" json:"kind"`
	IssuedAt      time.Time     `json:"issued_at"`
	UsedAt        *time.Time    `json:"used_at,omitempty"`
	SourceEntries []LedgerEntry `gorm:"foreignKey:CouponID" json:"source_entries,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (cp *Coupon) BeforeCreate(tx *gorm.DB) error {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	return nil
}
