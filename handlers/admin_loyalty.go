package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"reelclub-backend/dtos"
	"reelclub-backend/ledger"
	"reelclub-backend/models"
	"reelclub-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminLoyaltyHandler covers back-office ledger operations: bulk accrual,
// recall, member audit, and dashboard stats jobs.
type AdminLoyaltyHandler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

// BatchAccrue inserts n entries for a member in one all-or-nothing pass.
func (h *AdminLoyaltyHandler) BatchAccrue(c *gin.Context) {
	var req struct {
		MemberID   string `json:"member_id" binding:"required"`
		RewardType string `json:"reward_type" binding:"required"`
		Count      int    `json:"count" binding:"required,min=1,max=500"`
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

	result, err := h.Ledger.AccrueBatch(memberID, req.RewardType, req.Count, models.SourceMethodStaff, time.Now())
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Batch accrued",
		"entry_ids":  result.EntryIDs,
		"coupon_ids": result.CouponIDs,
	})
}

// RecallEntry reverses a live accrual.
func (h *AdminLoyaltyHandler) RecallEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry id"})
		return
	}

	if err := h.Ledger.RecallEntry(entryID); err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Entry recalled"})
}

// RecallCoupon deletes a coupon. The entries that funded it stay consumed.
func (h *AdminLoyaltyHandler) RecallCoupon(c *gin.Context) {
	couponID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon id"})
		return
	}

	if err := h.Ledger.RecallCoupon(couponID); err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon recalled. Source entries remain consumed."})
}

// GetMemberAudit returns the audit trail for any member.
func (h *AdminLoyaltyHandler) GetMemberAudit(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, total, err := h.Ledger.AuditLog(memberID, page, limit)
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

// StartStatsJob kicks off an async dashboard aggregation across all (or the
// requested) members and returns the job id to poll.
func (h *AdminLoyaltyHandler) StartStatsJob(c *gin.Context) {
	var req struct {
		MemberIDs []string `json:"member_ids"`
	}
	// Empty body means all members.
	_ = c.ShouldBindJSON(&req)

	var memberIDs []uuid.UUID
	if len(req.MemberIDs) > 0 {
		for _, raw := range req.MemberIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member id: " + raw})
				return
			}
			memberIDs = append(memberIDs, id)
		}
	} else {
		var members []models.Member
		if err := h.DB.Select("id").Find(&members).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
			return
		}
		for _, m := range members {
			memberIDs = append(memberIDs, m.ID)
		}
	}

	job := utils.Store.CreateJob(len(memberIDs))

	go func(jobID uuid.UUID, ids []uuid.UUID) {
		utils.Store.UpdateJob(jobID, func(j *dtos.StatsJob) {
			j.Status = dtos.JobStatusProcessing
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		stats, failures := h.Ledger.CollectStats(ctx, ids)

		utils.Store.UpdateJob(jobID, func(j *dtos.StatsJob) {
			j.Stats = stats
			j.Failures = failures
			j.Failed = len(failures)
		})
		utils.Store.CompleteJob(jobID, dtos.JobStatusCompleted)
	}(job.ID, memberIDs)

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// GetStatsJob returns the state of a stats job.
func (h *AdminLoyaltyHandler) GetStatsJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job id"})
		return
	}

	job, ok := utils.Store.GetJob(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}
