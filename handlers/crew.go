package handlers

import (
	"net/http"
	"time"

	"reelclub-backend/ledger"
	"reelclub-backend/models"
	"reelclub-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CrewHandler covers dockside operations: trusted accrual for a member
// standing at the counter and coupon redemption.
type CrewHandler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

// Accrue grants a single entry on behalf of a member. The trusted source
// method skips the self-service cooldown.
func (h *CrewHandler) Accrue(c *gin.Context) {
	var req struct {
		MemberID   string `json:"member_id" binding:"required"`
		RewardType string `json:"reward_type" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member_id"})
		return
	}
	if !validRewardType(req.RewardType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown reward type"})
		return
	}

	var member models.Member
	if err := h.DB.Where("id = ?", memberID).First(&member).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	result, err := h.Ledger.Accrue(memberID, req.RewardType, models.SourceMethodStaff, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Entry added",
		"entry":   result.Entry,
		"coupons": result.Coupons,
	})
}

// Redeem marks a specific coupon used.
func (h *CrewHandler) Redeem(c *gin.Context) {
	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon id"})
		return
	}

	coupon, err := h.Ledger.Redeem(couponID, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon redeemed",
		"coupon":  coupon,
	})
}

// RedeemAny auto-picks the member's oldest unused full coupon. When only
// half coupons remain the operator must pick one via Redeem.
func (h *CrewHandler) RedeemAny(c *gin.Context) {
	var req struct {
		MemberID   string `json:"member_id" binding:"required"`
		RewardType string `json:"reward_type"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member_id"})
		return
	}

	rewardType := req.RewardType
	if rewardType == "" {
		rewardType = models.RewardTypeStamp
	}
	if !validRewardType(rewardType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown reward type"})
		return
	}

	coupon, err := h.Ledger.RedeemAny(memberID, rewardType, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon redeemed",
		"coupon":  coupon,
	})
}
