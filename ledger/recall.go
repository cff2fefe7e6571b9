package ledger

import (
	"errors"
	"fmt"
	"time"

	"reelclub-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecallEntry reverses a live accrual: the entry is hard-deleted and the
// daily counter for its business day is decremented. An entry a coupon has
// already consumed cannot be recalled; the coupon must be recalled instead.
func (s *Service) RecallEntry(entryID uuid.UUID) error {
	var memberID uuid.UUID
	var rewardType string
	err := s.inTx(func(tx *gorm.DB) error {
		var entry models.LedgerEntry
		if err := tx.Where("id = ?", entryID).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: entry %s", ErrNotFound, entryID)
			}
			return err
		}
		if entry.Consumed {
			return ErrAlreadyConsumed
		}
		memberID, rewardType = entry.MemberID, entry.RewardType

		if _, err := lockLedger(tx, entry.MemberID, entry.RewardType); err != nil {
			return err
		}
		// A threshold issuance can fold the entry into a coupon between
		// the read above and the lock acquisition; the consumed check is
		// repeated in the WHERE clause so a consumed entry is never
		// deleted out from under its coupon.
		res := tx.Where("id = ? AND consumed = ?", entry.ID, false).Delete(&models.LedgerEntry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyConsumed
		}
		if err := s.decrementDailyCounter(tx, entry); err != nil {
			return err
		}
		return writeAudit(tx, entry.MemberID, models.AuditActionRecall, &entry.ID, nil,
			fmt.Sprintf("Recalled %s entry accrued %s via %s",
				entry.RewardType, entry.CreatedAt.Format(time.RFC3339), entry.SourceMethod))
	})
	if err != nil {
		return err
	}

	s.notify(memberID, "Reward adjusted",
		fmt.Sprintf("A %s on your account was removed by the club. Contact us with any questions.", rewardType), nil)
	return nil
}

// RecallCoupon deletes an issued or used coupon. The entries that funded it
// stay permanently consumed; recalling a coupon never resurrects stamps.
func (s *Service) RecallCoupon(couponID uuid.UUID) error {
	var memberID uuid.UUID
	var kind models.CouponKind
	err := s.inTx(func(tx *gorm.DB) error {
		var coupon models.Coupon
		if err := tx.Preload("SourceEntries").Where("id = ?", couponID).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: coupon %s", ErrNotFound, couponID)
			}
			return err
		}
		memberID, kind = coupon.MemberID, coupon.Kind

		sourceIDs := make([]uuid.UUID, 0, len(coupon.SourceEntries))
		for _, e := range coupon.SourceEntries {
			sourceIDs = append(sourceIDs, e.ID)
		}

		// Unlink before delete so the source entries survive with
		// consumed=true. They are gone for good; the audit message is
		// the only record of which entries funded the coupon.
		if len(sourceIDs) > 0 {
			if err := tx.Model(&models.LedgerEntry{}).Where("coupon_id = ?", coupon.ID).
				Update("coupon_id", nil).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Coupon{}, "id = ?", coupon.ID)
		if res.Error != nil {
			return res.Error
		}
		// Zero rows means another recall got there first.
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: coupon %s", ErrNotFound, couponID)
		}
		return writeAudit(tx, coupon.MemberID, models.AuditActionRecall, nil, &coupon.ID,
			fmt.Sprintf("Recalled %s coupon; source entries stay consumed: %s", coupon.Kind, joinIDs(sourceIDs)))
	})
	if err != nil {
		return err
	}

	s.notify(memberID, "Coupon recalled",
		fmt.Sprintf("Your %s coupon was recalled by the club. Contact us with any questions.", kind), nil)
	return nil
}

// decrementDailyCounter undoes one accrual on the counter for the entry's
// business day, never dropping below zero.
func (s *Service) decrementDailyCounter(tx *gorm.DB, entry models.LedgerEntry) error {
	date := s.Policy.DayOf(entry.CreatedAt)

	var counter models.DailyCounter
	err := tx.Where("member_id = ? AND reward_type = ? AND date = ?", entry.MemberID, entry.RewardType, date).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if counter.TotalAwarded <= 0 {
		return nil
	}
	return tx.Model(&counter).Update("total_awarded", counter.TotalAwarded-1).Error
}
