package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions. Every operation that changes ledger or coupon state writes
// exactly one record, inside the same transaction as the change itself.
const (
	AuditActionAdd     = "add"
	AuditActionConsume = "consume"
	AuditActionIssue   = "issue"
	AuditActionRedeem  = "redeem"
	AuditActionRecall  = "recall"
)

// AuditRecord is an append-only trace of a ledger-affecting operation.
// Records are never updated or deleted.
type AuditRecord struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	MemberID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"member_id"`
	Action    string     `gorm:"not null" json:"action"`
	EntryID   *uuid.UUID `gorm:"type:uuid" json:"entry_id,omitempty"`
	CouponID  *uuid.UUID `gorm:"type:uuid" json:"coupon_id,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
