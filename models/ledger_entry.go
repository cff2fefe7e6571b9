package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reward types accrued on a member's ledger.
const (
	RewardTypeStamp        = "stamp"
	RewardTypeCommentPoint = "comment_point"
)

// How an entry was accrued.
const (
	SourceMethodSelf  = "self"  // member action: QR scan aboard, community post
	SourceMethodStaff = "staff" // crew or admin granted at the dock
)

// LedgerEntry is one accrual on a member's reward ledger. Entries are
// immutable once written, except for the one-way consumed transition when
// the entry is folded into a coupon.
type LedgerEntry struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	MemberID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_member_type,priority:1" json:"member_id"`
	Member       Member     `gorm:"foreignKey:MemberID" json:"-"`
	RewardType   string     `gorm:"not null;index:idx_ledger_member_type,priority:2" json:"reward_type"`
	SourceMethod string     `gorm:"not null" json:"source_method"`
	Consumed     bool       `gorm:"default:false" json:"consumed"`
	CouponID     *uuid.UUID `gorm:"type:uuid;index" json:"coupon_id,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
