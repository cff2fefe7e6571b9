package routes

import (
	"time"

	"reelclub-backend/handlers"
	"reelclub-backend/ledger"
	"reelclub-backend/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, db *gorm.DB, svc *ledger.Service) {
	// Initialize handlers
	authHandler := &handlers.AuthHandler{DB: db}
	loyaltyHandler := &handlers.LoyaltyHandler{DB: db, Ledger: svc}
	crewHandler := &handlers.CrewHandler{DB: db, Ledger: svc}
	adminHandler := &handlers.AdminLoyaltyHandler{DB: db, Ledger: svc}

	// Public routes, rate limited per IP
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	api := r.Group("/api")
	{
		auth := api.Group("")
		auth.Use(authLimiter.Middleware())
		auth.POST("/auth/register", authHandler.Register)
		auth.POST("/auth/login", authHandler.Login)
	}

	// Member routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/fcm-token", authHandler.UpdateFCMToken)

		protected.POST("/loyalty/accrue", loyaltyHandler.AccrueStamp)
		protected.POST("/community/points", loyaltyHandler.AccrueCommentPoint)
		protected.GET("/loyalty/ledger", loyaltyHandler.GetLedger)
		protected.GET("/loyalty/coupons", loyaltyHandler.GetCoupons)
		protected.GET("/loyalty/audit", loyaltyHandler.GetAudit)
	}

	// Crew routes (crew or admin role)
	crew := api.Group("/crew")
	crew.Use(middleware.AuthMiddleware())
	crew.Use(middleware.CrewMiddleware())
	{
		crew.POST("/loyalty/accrue", crewHandler.Accrue)
		crew.POST("/loyalty/redeem/:id", crewHandler.Redeem)
		crew.POST("/loyalty/redeem-any", crewHandler.RedeemAny)
	}

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/members", authHandler.ListMembers)
		admin.POST("/loyalty/batch", adminHandler.BatchAccrue)
		admin.DELETE("/loyalty/entries/:id", adminHandler.RecallEntry)
		admin.DELETE("/loyalty/coupons/:id", adminHandler.RecallCoupon)
		admin.GET("/members/:id/audit", adminHandler.GetMemberAudit)
		admin.POST("/loyalty/stats", adminHandler.StartStatsJob)
		admin.GET("/loyalty/stats/:id", adminHandler.GetStatsJob)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
