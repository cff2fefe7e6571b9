package ledger

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"reelclub-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier delivers a push message to a member. Implementations must be
// non-blocking and best-effort: delivery happens outside the ledger
// transaction and a failure is logged, never surfaced to the caller.
type Notifier interface {
	Notify(memberID uuid.UUID, title, body string, data map[string]string)
}

// Service owns every mutation of the reward ledger. Each operation runs as
// one database transaction per member aggregate: rate-limit check, append,
// counter update, threshold issuance, and audit all land together or not at
// all.
type Service struct {
	DB       *gorm.DB
	Policy   Policy
	Notifier Notifier
}

func NewService(db *gorm.DB, policy Policy, notifier Notifier) *Service {
	return &Service{DB: db, Policy: policy, Notifier: notifier}
}

// AccrueResult reports what one accrual produced.
type AccrueResult struct {
	Entry   models.LedgerEntry `json:"entry"`
	Coupons []models.Coupon    `json:"coupons,omitempty"`
}

// BatchResult reports what a batch accrual produced.
type BatchResult struct {
	EntryIDs  []uuid.UUID `json:"entry_ids"`
	CouponIDs []uuid.UUID `json:"coupon_ids,omitempty"`
}

const conflictRetries = 3

// inTx runs fn in a transaction, retrying a bounded number of times when the
// database reports a serialization conflict or deadlock.
func (s *Service) inTx(fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = s.DB.Transaction(fn)
		if !isConflict(err) {
			return err
		}
		log.Printf("ledger: transaction conflict, retrying (%d/%d): %v", attempt+1, conflictRetries, err)
	}
	return ErrConflict
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "duplicate key value violates unique constraint \"idx_rate_limit_member_type\"")
}

// lockLedger loads the member's rate-limit row for the reward type, creating
// it on first accrual, and locks it for the rest of the transaction. On
// PostgreSQL the row lock serializes concurrent mutations of one member's
// ledger; the sqlite test database serializes on its single connection.
func lockLedger(tx *gorm.DB, memberID uuid.UUID, rewardType string) (*models.RateLimitState, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var state models.RateLimitState
	err := q.Where("member_id = ? AND reward_type = ?", memberID, rewardType).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.RateLimitState{MemberID: memberID, RewardType: rewardType}
		if err := tx.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Service) typePolicy(rewardType string) (TypePolicy, error) {
	tp, ok := s.Policy.Types[rewardType]
	if !ok {
		return TypePolicy{}, fmt.Errorf("%w: %q", ErrUnknownRewardType, rewardType)
	}
	return tp, nil
}

// Accrue appends one live ledger entry for the member, then issues any
// coupons the new live count funds. A rejected attempt leaves no entry, no
// counter bump, and no audit record, and does not reset the cooldown clock.
func (s *Service) Accrue(memberID uuid.UUID, rewardType, sourceMethod string, now time.Time) (*AccrueResult, error) {
	tp, err := s.typePolicy(rewardType)
	if err != nil {
		return nil, err
	}

	var result AccrueResult
	err = s.inTx(func(tx *gorm.DB) error {
		state, err := lockLedger(tx, memberID, rewardType)
		if err != nil {
			return err
		}
		if err := checkCooldown(state, tp, sourceMethod, now); err != nil {
			return err
		}
		if err := s.bumpDailyCounter(tx, memberID, rewardType, tp, now, 1); err != nil {
			return err
		}

		entry := models.LedgerEntry{
			MemberID:     memberID,
			RewardType:   rewardType,
			SourceMethod: sourceMethod,
			CreatedAt:    now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(state).Update("last_accrual_at", now).Error; err != nil {
			return err
		}
		if err := writeAudit(tx, memberID, models.AuditActionAdd, &entry.ID, nil,
			fmt.Sprintf("Accrued 1 %s via %s", rewardType, sourceMethod)); err != nil {
			return err
		}

		coupons, err := s.issueThresholds(tx, memberID, rewardType, tp, now)
		if err != nil {
			return err
		}
		result = AccrueResult{Entry: entry, Coupons: coupons}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAccrual(memberID, rewardType, result.Coupons)
	return &result, nil
}

// AccrueBatch appends n entries in one pass. The whole batch either lands or
// is rejected: the cooldown is checked once and the daily cap is checked
// against the full batch size. Entries get strictly increasing synthetic
// timestamps and the threshold loop runs exactly once at the end, which
// yields the same coupons as n sequential Accrue calls.
func (s *Service) AccrueBatch(memberID uuid.UUID, rewardType string, n int, sourceMethod string, now time.Time) (*BatchResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", n)
	}
	tp, err := s.typePolicy(rewardType)
	if err != nil {
		return nil, err
	}

	var result BatchResult
	err = s.inTx(func(tx *gorm.DB) error {
		state, err := lockLedger(tx, memberID, rewardType)
		if err != nil {
			return err
		}
		if err := checkCooldown(state, tp, sourceMethod, now); err != nil {
			return err
		}
		if err := s.bumpDailyCounter(tx, memberID, rewardType, tp, now, n); err != nil {
			return err
		}

		entryIDs := make([]uuid.UUID, 0, n)
		var last time.Time
		for i := 0; i < n; i++ {
			last = now.Add(time.Duration(i) * batchEpsilon)
			entry := models.LedgerEntry{
				MemberID:     memberID,
				RewardType:   rewardType,
				SourceMethod: sourceMethod,
				CreatedAt:    last,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if err := writeAudit(tx, memberID, models.AuditActionAdd, &entry.ID, nil,
				fmt.Sprintf("Accrued 1 %s via %s (batch %d of %d)", rewardType, sourceMethod, i+1, n)); err != nil {
				return err
			}
			entryIDs = append(entryIDs, entry.ID)
		}
		if err := tx.Model(state).Update("last_accrual_at", last).Error; err != nil {
			return err
		}

		coupons, err := s.issueThresholds(tx, memberID, rewardType, tp, now)
		if err != nil {
			return err
		}
		couponIDs := make([]uuid.UUID, 0, len(coupons))
		for _, cp := range coupons {
			couponIDs = append(couponIDs, cp.ID)
		}
		result = BatchResult{EntryIDs: entryIDs, CouponIDs: couponIDs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.CouponIDs) > 0 {
		s.notify(memberID, "New reward earned!",
			fmt.Sprintf("You earned %d new coupon(s). Check your rewards.", len(result.CouponIDs)), nil)
	}
	return &result, nil
}

// checkCooldown rejects the accrual while the member is still inside the
// cooldown window for the source method. It must not mutate state: a
// rejected attempt never resets the clock.
func checkCooldown(state *models.RateLimitState, tp TypePolicy, sourceMethod string, now time.Time) error {
	cooldown := tp.Cooldowns[sourceMethod]
	if cooldown <= 0 || state.LastAccrualAt.IsZero() {
		return nil
	}
	next := state.LastAccrualAt.Add(cooldown)
	if now.Before(next) {
		return &RateLimitError{NextAvailableAt: next}
	}
	return nil
}

// bumpDailyCounter adds n to the member's counter for the business day of
// now, rejecting the whole amount if it would exceed the cap.
func (s *Service) bumpDailyCounter(tx *gorm.DB, memberID uuid.UUID, rewardType string, tp TypePolicy, now time.Time, n int) error {
	date := s.Policy.DayOf(now)

	var counter models.DailyCounter
	err := tx.Where("member_id = ? AND reward_type = ? AND date = ?", memberID, rewardType, date).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if tp.DailyCap > 0 && n > tp.DailyCap {
			return ErrDailyCapExceeded
		}
		counter = models.DailyCounter{MemberID: memberID, RewardType: rewardType, Date: date, TotalAwarded: n}
		return tx.Create(&counter).Error
	}
	if err != nil {
		return err
	}

	if tp.DailyCap > 0 && counter.TotalAwarded+n > tp.DailyCap {
		return ErrDailyCapExceeded
	}
	return tx.Model(&counter).Update("total_awarded", counter.TotalAwarded+n).Error
}

// issueThresholds converts live entries into coupons. Thresholds are walked
// ascending and each one loops until the live count drops below it, so a
// batch of 23 stamps against a 10-threshold yields two coupons with three
// live entries left, exactly as 23 single accruals would.
func (s *Service) issueThresholds(tx *gorm.DB, memberID uuid.UUID, rewardType string, tp TypePolicy, now time.Time) ([]models.Coupon, error) {
	var issued []models.Coupon
	for _, th := range tp.Thresholds {
		for {
			var live int64
			if err := tx.Model(&models.LedgerEntry{}).
				Where("member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, false).
				Count(&live).Error; err != nil {
				return nil, err
			}
			if live < int64(th.Count) {
				break
			}
			coupon, err := s.issueOne(tx, memberID, rewardType, th, now)
			if err != nil {
				return nil, err
			}
			issued = append(issued, *coupon)
		}
	}
	return issued, nil
}

// issueOne consumes the oldest th.Count live entries and creates one coupon
// funded by them.
func (s *Service) issueOne(tx *gorm.DB, memberID uuid.UUID, rewardType string, th Threshold, now time.Time) (*models.Coupon, error) {
	coupon := models.Coupon{
		MemberID:   memberID,
		RewardType: rewardType,
		Kind:       th.Kind,
		IssuedAt:   now,
	}
	if err := tx.Create(&coupon).Error; err != nil {
		return nil, err
	}

	consumedIDs, err := consumeOldest(tx, memberID, rewardType, th.Count, coupon.ID)
	if err != nil {
		return nil, err
	}

	if err := writeAudit(tx, memberID, models.AuditActionConsume, nil, &coupon.ID,
		fmt.Sprintf("Consumed %d %s entries: %s", len(consumedIDs), rewardType, joinIDs(consumedIDs))); err != nil {
		return nil, err
	}
	if err := writeAudit(tx, memberID, models.AuditActionIssue, nil, &coupon.ID,
		fmt.Sprintf("Issued %s coupon for %d %s entries", coupon.Kind, th.Count, rewardType)); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// consumeOldest marks the n chronologically earliest live entries consumed
// by the given coupon. Fails with ErrInsufficientEntries when fewer than n
// live entries exist.
func consumeOldest(tx *gorm.DB, memberID uuid.UUID, rewardType string, n int, couponID uuid.UUID) ([]uuid.UUID, error) {
	var entries []models.LedgerEntry
	if err := tx.Where("member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, false).
		Order("created_at ASC, id ASC").Limit(n).Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) < n {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientEntries, n, len(entries))
	}

	ids := make([]uuid.UUID, 0, n)
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := tx.Model(&models.LedgerEntry{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"consumed": true, "coupon_id": couponID}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func writeAudit(tx *gorm.DB, memberID uuid.UUID, action string, entryID, couponID *uuid.UUID, message string) error {
	record := models.AuditRecord{
		MemberID: memberID,
		Action:   action,
		EntryID:  entryID,
		CouponID: couponID,
		Message:  message,
	}
	return tx.Create(&record).Error
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}

func (s *Service) notifyAccrual(memberID uuid.UUID, rewardType string, coupons []models.Coupon) {
	switch {
	case len(coupons) > 0:
		s.notify(memberID, "New reward earned!",
			fmt.Sprintf("Your %ss just earned you a coupon. Check your rewards.", rewardType), nil)
	case rewardType == models.RewardTypeStamp:
		s.notify(memberID, "Stamp added", "A new stamp was added to your card.", nil)
	}
}

func (s *Service) notify(memberID uuid.UUID, title, body string, data map[string]string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(memberID, title, body, data)
}
