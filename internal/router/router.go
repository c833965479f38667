// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/handlers"
	"github.com/autolend/leadmarket-backend/internal/middleware"
	"github.com/autolend/leadmarket-backend/internal/services"
	"github.com/autolend/leadmarket-backend/internal/store"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Core marketplace services share the transactional store; everything
	// else talks to GORM directly.
	st := store.NewGormStore(db)

	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)

	pricingService := services.NewPricingService(st)
	lockService := services.NewLockService(st)
	purchaseService := services.NewPurchaseService(st)
	availabilityService := services.NewAvailabilityService(st, lockService, purchaseService, pricingService)

	authService := services.NewAuthService(db, cfg, notificationService)
	userService := services.NewUserService(db, storageService)
	applicationService := services.NewApplicationService(db, storageService, notificationService)
	paymentService := services.NewPaymentService(cfg, pricingService, lockService, purchaseService, notificationService)
	adminService := services.NewAdminService(db, st, pricingService, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, notificationService)
	applicationHandler := handlers.NewApplicationHandler(applicationService)
	marketplaceHandler := handlers.NewMarketplaceHandler(availabilityService, lockService, purchaseService, pricingService, paymentService)
	webhookHandler := handlers.NewWebhookHandler(cfg, paymentService)
	adminHandler := handlers.NewAdminHandler(adminService, applicationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Stripe calls this; authenticated by signature, not JWT.
	r.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/verify-email/:token", authHandler.VerifyEmail)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.DELETE("/account", userHandler.DeleteAccount)
			users.GET("/notifications", userHandler.GetNotifications)
			users.PUT("/notifications/:id/read", userHandler.MarkNotificationRead)
		}

		// Applicant routes
		applications := v1.Group("/applications")
		applications.Use(middleware.AuthRequired())
		{
			applications.POST("", applicationHandler.CreateDraft)
			applications.GET("", applicationHandler.ListMyApplications)
			applications.GET("/:id", applicationHandler.GetApplication)
			applications.PUT("/:id", applicationHandler.UpdateDraft)
			applications.POST("/:id/submit", applicationHandler.Submit)
			applications.POST("/:id/documents", middleware.UploadRateLimit(), applicationHandler.UploadDocument)
			applications.GET("/:id/documents", applicationHandler.GetDocuments)
			applications.GET("/:id/documents/:docId/download", applicationHandler.DownloadDocument)
		}

		// Dealer marketplace routes
		marketplace := v1.Group("/marketplace")
		marketplace.Use(middleware.AuthRequired(), middleware.DealerRequired())
		{
			marketplace.GET("/applications", marketplaceHandler.ListApplications)
			marketplace.GET("/applications/:id", marketplaceHandler.GetApplication)
			marketplace.POST("/applications/:id/lock", marketplaceHandler.LockApplication)
			marketplace.DELETE("/applications/:id/lock", marketplaceHandler.UnlockApplication)
			marketplace.GET("/applications/:id/lock", marketplaceHandler.GetLockStatus)
			marketplace.GET("/applications/:id/quote", marketplaceHandler.GetPriceQuote)
			marketplace.POST("/checkout", middleware.CheckoutRateLimit(), marketplaceHandler.CreateCheckout)
			marketplace.GET("/downloads", marketplaceHandler.GetDownloads)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			// Dashboard
			dashboard := admin.Group("/dashboard")
			{
				dashboard.GET("/stats", adminHandler.GetDashboardStats)
			}

			// User management
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
			}
			admin.POST("/notifications", adminHandler.SendNotification)

			// Application review
			adminApplications := admin.Group("/applications")
			{
				adminApplications.GET("", adminHandler.GetApplications)
				adminApplications.POST("/:id/review", adminHandler.ReviewApplication)
			}

			// Pricing management
			adminPricing := admin.Group("/pricing")
			{
				adminPricing.GET("", adminHandler.GetPricingPolicies)
				adminPricing.PUT("", adminHandler.SavePricingPolicy)
			}

			// Sales
			adminPurchases := admin.Group("/purchases")
			{
				adminPurchases.GET("", adminHandler.GetPurchases)
			}
			adminDealers := admin.Group("/dealers")
			{
				adminDealers.GET("/activity", adminHandler.GetDealerActivity)
			}

			// Analytics and reporting
			adminAnalytics := admin.Group("/analytics")
			{
				adminAnalytics.GET("", adminHandler.GetAnalytics)
			}

			// Settings management
			adminSettings := admin.Group("/settings")
			{
				adminSettings.GET("", adminHandler.GetSettings)
				adminSettings.PUT("", adminHandler.UpdateSetting)
			}

			// Audit trail
			adminAudit := admin.Group("/audit-logs")
			{
				adminAudit.GET("", adminHandler.GetAuditLogs)
			}
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
