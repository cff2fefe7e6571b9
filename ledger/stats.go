package ledger

import (
	"context"
	"sync"

	"reelclub-backend/models"

	"github.com/google/uuid"
)

// statsWorkers bounds the fan-out of per-member stat fetches.
const statsWorkers = 10

// MemberStats is the dashboard aggregate for one member.
type MemberStats struct {
	MemberID      uuid.UUID        `json:"member_id"`
	LiveEntries   map[string]int64 `json:"live_entries"`
	TotalEntries  map[string]int64 `json:"total_entries"`
	UnusedCoupons int64            `json:"unused_coupons"`
	UsedCoupons   int64            `json:"used_coupons"`
}

// StatsError reports a member whose stats could not be fetched.
type StatsError struct {
	MemberID uuid.UUID `json:"member_id"`
	Err      string    `json:"error"`
}

// CollectStats computes dashboard stats for the given members with a
// bounded worker pool. One member failing does not abort the rest; failures
// come back alongside the successes. Cancelling ctx stops issuing further
// fetches but already-started fetches run to completion.
func (s *Service) CollectStats(ctx context.Context, memberIDs []uuid.UUID) ([]MemberStats, []StatsError) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, statsWorkers)

	type result struct {
		stats MemberStats
		err   error
		id    uuid.UUID
	}
	results := make(chan result, len(memberIDs))

fanout:
	for _, id := range memberIDs {
		// Cancellation must also interrupt a blocked semaphore acquire.
		select {
		case <-ctx.Done():
			break fanout
		case semaphore <- struct{}{}: // Acquire
		}
		wg.Add(1)
		go func(memberID uuid.UUID) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			stats, err := s.memberStats(memberID)
			results <- result{stats: stats, err: err, id: memberID}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats []MemberStats
	var failures []StatsError
	for r := range results {
		if r.err != nil {
			failures = append(failures, StatsError{MemberID: r.id, Err: r.err.Error()})
			continue
		}
		stats = append(stats, r.stats)
	}
	return stats, failures
}

func (s *Service) memberStats(memberID uuid.UUID) (MemberStats, error) {
	stats := MemberStats{
		MemberID:     memberID,
		LiveEntries:  make(map[string]int64),
		TotalEntries: make(map[string]int64),
	}

	for rewardType := range s.Policy.Types {
		var total int64
		if err := s.DB.Model(&models.LedgerEntry{}).
			Where("member_id = ? AND reward_type = ?", memberID, rewardType).
			Count(&total).Error; err != nil {
			return stats, err
		}
		var live int64
		if err := s.DB.Model(&models.LedgerEntry{}).
			Where("member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, false).
			Count(&live).Error; err != nil {
			return stats, err
		}
		stats.TotalEntries[rewardType] = total
		stats.LiveEntries[rewardType] = live
	}

	if err := s.DB.Model(&models.Coupon{}).
		Where("member_id = ? AND used_at IS NULL", memberID).
		Count(&stats.UnusedCoupons).Error; err != nil {
		return stats, err
	}
	if err := s.DB.Model(&models.Coupon{}).
		Where("member_id = ? AND used_at IS NOT NULL", memberID).
		Count(&stats.UsedCoupons).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
