package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyCounter tracks how many entries of one reward type a member earned on
// one business day. The date is a calendar date rendered in the club's fixed
// timezone, not the host timezone, so the day boundary matches the dock.
type DailyCounter struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	MemberID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_counter,priority:1" json:"member_id"`
	RewardType   string    `gorm:"not null;uniqueIndex:idx_daily_counter,priority:2" json:"reward_type"`
	Date         string    `gorm:"not null;uniqueIndex:idx_daily_counter,priority:3" json:"date"` // 2006-01-02
	TotalAwarded int       `gorm:"default:0" json:"total_awarded"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *DailyCounter) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
