package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned when an accrual lands inside the cooldown
	// window. Use errors.As with *RateLimitError to read the expiry time.
	ErrRateLimited = errors.New("accrual rate limit exceeded")

	// ErrDailyCapExceeded is returned when the member already earned the
	// daily maximum for this reward type.
	ErrDailyCapExceeded = errors.New("daily accrual cap exceeded")

	// ErrInsufficientEntries is returned when a threshold issuance needs
	// more live entries than the ledger holds.
	ErrInsufficientEntries = errors.New("insufficient live entries")

	// ErrAlreadyConsumed is returned when recalling an entry that a coupon
	// already consumed. The coupon must be recalled instead.
	ErrAlreadyConsumed = errors.New("entry already consumed by a coupon")

	// ErrAlreadyUsed is returned when redeeming a coupon a second time.
	ErrAlreadyUsed = errors.New("coupon already used")

	// ErrRequiresExplicitChoice is returned by RedeemAny when only
	// half-price coupons remain; applying the wrong discount silently is
	// worse than making the operator pick one.
	ErrRequiresExplicitChoice = errors.New("only half coupons remain, redeem one explicitly")

	// ErrNotFound is returned when the referenced entry, coupon, or member
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned after a transaction kept colliding with
	// concurrent writes and exhausted its retries.
	ErrConflict = errors.New("transaction conflict")

	// ErrUnknownRewardType is returned for a reward type the policy does
	// not configure.
	ErrUnknownRewardType = errors.New("unknown reward type")
)

// RateLimitError carries the moment the cooldown expires so callers can show
// the member when to try again.
type RateLimitError struct {
	NextAvailableAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, next accrual available at %s", e.NextAvailableAt.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
