package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"reelclub-backend/ledger"
	"reelclub-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoyaltyHandler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

// ledgerError maps ledger errors onto HTTP responses. Policy violations get
// enough context for the member-facing message; internal failures stay
// generic.
func ledgerError(c *gin.Context, err error) {
	var rle *ledger.RateLimitError
	switch {
	case errors.As(err, &rle):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "You already earned this recently. Try again later.",
			"next_available_at": rle.NextAvailableAt,
		})
	case errors.Is(err, ledger.ErrDailyCapExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Daily limit reached. Come back tomorrow."})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, ledger.ErrAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "Coupon has already been used"})
	case errors.Is(err, ledger.ErrAlreadyConsumed):
		c.JSON(http.StatusConflict, gin.H{"error": "Entry was already converted into a coupon; recall the coupon instead"})
	case errors.Is(err, ledger.ErrRequiresExplicitChoice):
		c.JSON(http.StatusConflict, gin.H{"error": "Only half-price coupons remain; pick one explicitly"})
	case errors.Is(err, ledger.ErrInsufficientEntries):
		c.JSON(http.StatusConflict, gin.H{"error": "Not enough entries"})
	case errors.Is(err, ledger.ErrUnknownRewardType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown reward type"})
	case errors.Is(err, ledger.ErrConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Busy, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// AccrueStamp handles the member's own QR scan aboard the boat. The long
// self-service cooldown applies.
func (h *LoyaltyHandler) AccrueStamp(c *gin.Context) {
	memberID, exists := c.Get("member_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.Ledger.Accrue(memberID.(uuid.UUID), models.RewardTypeStamp, models.SourceMethodSelf, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Stamp added",
		"entry":   result.Entry,
		"coupons": result.Coupons,
	})
}

// AccrueCommentPoint awards a community point for board activity, capped
// per day by policy.
func (h *LoyaltyHandler) AccrueCommentPoint(c *gin.Context) {
	memberID, exists := c.Get("member_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.Ledger.Accrue(memberID.(uuid.UUID), models.RewardTypeCommentPoint, models.SourceMethodSelf, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Point added",
		"entry":   result.Entry,
	})
}

// GetLedger returns the member's own entries for a reward type.
func (h *LoyaltyHandler) GetLedger(c *gin.Context) {
	memberID, exists := c.Get("member_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rewardType := c.DefaultQuery("reward_type", models.RewardTypeStamp)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, total, err := h.Ledger.Entries(memberID.(uuid.UUID), rewardType, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ledger"})
		return
	}

	live, err := h.Ledger.LiveCount(memberID.(uuid.UUID), rewardType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"live":    live,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetCoupons returns the member's own coupons.
func (h *LoyaltyHandler) GetCoupons(c *gin.Context) {
	memberID, exists := c.Get("member_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	coupons, err := h.Ledger.Coupons(memberID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch coupons"})
		return
	}

	c.JSON(http.StatusOK, coupons)
}

// GetAudit returns the member's own audit trail.
func (h *LoyaltyHandler) GetAudit(c *gin.Context) {
	memberID, exists := c.Get("member_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, total, err := h.Ledger.AuditLog(memberID.(uuid.UUID), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// validRewardType guards reward_type request fields before they reach the
// ledger.
func validRewardType(rt string) bool {
	return rt == models.RewardTypeStamp || rt == models.RewardTypeCommentPoint
}
