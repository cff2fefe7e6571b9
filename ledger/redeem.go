package ledger

import (
	"errors"
	"fmt"
	"time"

	"reelclub-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Redeem marks the coupon used. Using a coupon is terminal: a second redeem
// fails with ErrAlreadyUsed.
func (s *Service) Redeem(couponID uuid.UUID, now time.Time) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.inTx(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", couponID).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: coupon %s", ErrNotFound, couponID)
			}
			return err
		}
		if coupon.UsedAt != nil {
			return ErrAlreadyUsed
		}
		// Guarded transition: under READ COMMITTED a concurrent redeem or
		// recall can land between the read above and this update, so the
		// used check is repeated in the WHERE clause.
		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND used_at IS NULL", coupon.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: coupon %s", ErrNotFound, couponID)
			}
			return ErrAlreadyUsed
		}
		coupon.UsedAt = &now
		return writeAudit(tx, coupon.MemberID, models.AuditActionRedeem, nil, &coupon.ID,
			fmt.Sprintf("Redeemed %s coupon", coupon.Kind))
	})
	if err != nil {
		return nil, err
	}

	s.notify(coupon.MemberID, "Coupon redeemed",
		fmt.Sprintf("Your %s coupon was redeemed. Tight lines!", coupon.Kind), nil)
	return &coupon, nil
}

// RedeemAny picks the member's oldest unused full coupon and redeems it.
// When only half coupons remain it refuses with ErrRequiresExplicitChoice so
// the operator confirms the discount rate instead of silently applying the
// wrong one.
func (s *Service) RedeemAny(memberID uuid.UUID, rewardType string, now time.Time) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.inTx(func(tx *gorm.DB) error {
		err := tx.Where("member_id = ? AND reward_type = ? AND kind = ? AND used_at IS NULL",
			memberID, rewardType, models.CouponKindFull).
			Order("issued_at ASC").First(&coupon).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var halves int64
			if err := tx.Model(&models.Coupon{}).
				Where("member_id = ? AND reward_type = ? AND kind = ? AND used_at IS NULL",
					memberID, rewardType, models.CouponKindHalf).
				Count(&halves).Error; err != nil {
				return err
			}
			if halves > 0 {
				return ErrRequiresExplicitChoice
			}
			return fmt.Errorf("%w: no unused coupons", ErrNotFound)
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND used_at IS NULL", coupon.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		// The picked coupon can be redeemed or recalled concurrently;
		// surfacing ErrConflict makes inTx retry and pick the next one.
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		coupon.UsedAt = &now
		return writeAudit(tx, memberID, models.AuditActionRedeem, nil, &coupon.ID,
			fmt.Sprintf("Redeemed %s coupon (auto-picked)", coupon.Kind))
	})
	if err != nil {
		return nil, err
	}

	s.notify(memberID, "Coupon redeemed",
		fmt.Sprintf("Your %s coupon was redeemed. Tight lines!", coupon.Kind), nil)
	return &coupon, nil
}
