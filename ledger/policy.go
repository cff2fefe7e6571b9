package ledger

import (
	"log"
	"sort"
	"strconv"
	"time"

	"reelclub-backend/config"
	"reelclub-backend/models"
)

// batchEpsilon spaces synthetic timestamps inside a batch accrual so FIFO
// ordering stays deterministic even when entries land faster than the clock
// resolution of the database column.
const batchEpsilon = time.Millisecond

// Threshold converts Count live entries into one coupon of the given kind.
type Threshold struct {
	Count int
	Kind  models.CouponKind
}

// TypePolicy is the accrual policy for one reward type.
type TypePolicy struct {
	// Cooldowns keyed by source method. A missing key means no cooldown.
	Cooldowns map[string]time.Duration
	// DailyCap is the maximum entries per business day; 0 means uncapped.
	DailyCap int
	// Thresholds sorted ascending by Count. Smaller thresholds are
	// evaluated first, so the same entries can never fund both a half and
	// a full coupon.
	Thresholds []Threshold
}

// Policy holds the ledger configuration for every reward type plus the
// fixed business timezone used for daily-cap day boundaries.
type Policy struct {
	Location *time.Location
	Types    map[string]TypePolicy
}

// DayOf renders the calendar date of t in the club's timezone.
func (p Policy) DayOf(t time.Time) string {
	return t.In(p.Location).Format("2006-01-02")
}

// DefaultPolicy builds the policy from environment variables with the club
// defaults: stamps cool down 8 hours for QR self-scans and convert 10-to-1
// into a full coupon; comment points are capped at 5 per day.
func DefaultPolicy() Policy {
	tzName := config.GetEnv("CLUB_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("WARNING: invalid CLUB_TIMEZONE %q, falling back to America/New_York: %v", tzName, err)
		loc, _ = time.LoadLocation("America/New_York")
	}

	stampCooldown := time.Duration(envInt("STAMP_COOLDOWN_HOURS", 8)) * time.Hour

	var stampThresholds []Threshold
	if half := envInt("STAMP_HALF_THRESHOLD", 0); half > 0 {
		stampThresholds = append(stampThresholds, Threshold{Count: half, Kind: models.CouponKindHalf})
	}
	if full := envInt("STAMP_FULL_THRESHOLD", 10); full > 0 {
		stampThresholds = append(stampThresholds, Threshold{Count: full, Kind: models.CouponKindFull})
	}
	sort.Slice(stampThresholds, func(i, j int) bool {
		return stampThresholds[i].Count < stampThresholds[j].Count
	})

	return Policy{
		Location: loc,
		Types: map[string]TypePolicy{
			models.RewardTypeStamp: {
				Cooldowns: map[string]time.Duration{
					models.SourceMethodSelf:  stampCooldown,
					models.SourceMethodStaff: 0,
				},
				Thresholds: stampThresholds,
			},
			models.RewardTypeCommentPoint: {
				DailyCap: envInt("COMMENT_POINT_DAILY_CAP", 5),
			},
		},
	}
}

func envInt(key string, def int) int {
	raw := config.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("WARNING: %s=%q is not a number, using default %d", key, raw, def)
		return def
	}
	return n
}
