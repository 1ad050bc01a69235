package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/auth"
	"tabashir/internal/config"
	"tabashir/internal/database"
	"tabashir/internal/payment"
	"tabashir/internal/storage"
)

// RegisterRoutes wires every handler onto the engine.
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	storageClient *storage.Client,
	stripeClient *payment.StripeClient,
	ziinaClient *payment.ZiinaClient,
) {
	authHandler := NewAuthHandler(db, authService, redisClient, logger)
	onboardingHandler := NewOnboardingHandler(db, logger)
	jobHandler := NewJobHandler(db, storageClient, asynqClient, cfg.API.ClamdAddr, logger)
	draftHandler := NewDraftHandler(db, asynqClient, storageClient, redisClient, payment.NewGate(db), cfg.Worker.InternalSecret, logger)
	paymentHandler := NewPaymentHandler(db, stripeClient, ziinaClient, cfg.API.FrontendBaseURL, logger)
	webhookHandler := NewWebhookHandler(stripeClient, ziinaClient, payment.NewUnlocker(db), asynqClient, logger)
	adminHandler := NewAdminHandler(db, logger)
	wsHandler := NewWsHandler(redisClient, authService, logger, nil)

	authMiddleware := middleware.AuthMiddleware(authService)
	candidateOnly := middleware.RequireUserType(database.UserTypeCandidate)
	recruiterOnly := middleware.RequireUserType(database.UserTypeRecruiter)

	apiGroup := router.Group("/api")
	{
		mobileAuth := apiGroup.Group("/mobile/auth")
		{
			mobileAuth.POST("/register", authHandler.Register)
			mobileAuth.POST("/login", authHandler.Login)
			mobileAuth.POST("/refresh", authHandler.Refresh)
			mobileAuth.POST("/logout", authHandler.Logout)
		}
		apiGroup.GET("/mobile/me", authMiddleware, authHandler.Me)

		apiGroup.POST("/payment-intent", authMiddleware, paymentHandler.CreateIntent)
		apiGroup.GET("/payment-intent/:id", authMiddleware, paymentHandler.GetIntent)
		apiGroup.GET("/subscription/latest", authMiddleware, paymentHandler.LatestSubscription)

		webhooks := apiGroup.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.Stripe)
			webhooks.POST("/ziina", webhookHandler.Ziina)
		}
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		jobsGroup := v1.Group("/jobs")
		{
			jobsGroup.GET("", jobHandler.ListJobs)
			jobsGroup.GET("/:id", jobHandler.GetJob)
			jobsGroup.POST("", authMiddleware, recruiterOnly, jobHandler.CreateJob)
			jobsGroup.PATCH("/:id", authMiddleware, recruiterOnly, jobHandler.UpdateJob)
			jobsGroup.POST("/:id/apply", authMiddleware, candidateOnly, jobHandler.Apply)
		}
		v1.GET("/applications", authMiddleware, candidateOnly, jobHandler.MyApplications)

		onboardingGroup := v1.Group("/onboarding")
		onboardingGroup.Use(authMiddleware, candidateOnly)
		{
			onboardingGroup.GET("/profile", onboardingHandler.Profile)
			onboardingGroup.POST("/personal-info", onboardingHandler.SubmitPersonalInfo)
			onboardingGroup.POST("/preferences", onboardingHandler.SubmitPreferences)
			onboardingGroup.POST("/complete", onboardingHandler.Complete)
		}

		resumesGroup := v1.Group("/resumes")
		resumesGroup.Use(authMiddleware, candidateOnly)
		{
			resumesGroup.POST("", draftHandler.CreateDraft)
			resumesGroup.GET("", draftHandler.ListDrafts)
			resumesGroup.GET("/:id", draftHandler.GetDraft)
			resumesGroup.POST("/:id/steps/:step", draftHandler.SubmitStep)
			resumesGroup.GET("/:id/download", draftHandler.Download)
		}
		v1.GET("/internal/resumes/:id/print-data", draftHandler.PrintData)
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(authMiddleware, middleware.AdminGate(db))
	{
		adminGroup.GET("/jobs", adminHandler.ListJobs)
		adminGroup.GET("/applications", adminHandler.ListApplications)
		adminGroup.PATCH("/applications/:id", adminHandler.UpdateApplicationStatus)
		adminGroup.GET("/payments", adminHandler.ListPayments)
		adminGroup.GET("/users", adminHandler.ListUsers)
	}
}
