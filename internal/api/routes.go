package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"statwise-backend/internal/core"
	"statwise-backend/internal/middleware"
)

// Services groups the service dependencies of the HTTP layer.
type Services struct {
	Payments      core.PaymentService
	Sweeper       core.SweeperService
	Notifications core.NotificationService
	Eraser        core.EraserService
	Users         core.UserService
	History       core.HistoryService
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is expected to be applied to router first.
func SetupRoutes(router *gin.Engine, verifier middleware.TokenVerifier, logger *zap.Logger, svc Services) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	paymentHandler := NewPaymentHandler(svc.Payments)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	userHandler := NewUserHandler(svc.Users, svc.History, svc.Eraser)
	adminHandler := NewAdminHandler(svc.Sweeper)

	apiV1 := router.Group("/api/v1", authMW.Authenticate())
	{
		apiV1.POST("/payments/verify", paymentHandler.VerifyPayment)

		// The dispatcher enforces its own admin policy so it can be relaxed by config.
		apiV1.POST("/notifications/prediction-alert", notificationHandler.SendPredictionAlert)

		// Every account route acts on the caller's own documents.
		users := apiV1.Group("/users", middleware.RequireAuth())
		{
			users.POST("/initialize", userHandler.InitializeProfile)
			users.POST("/delete", userHandler.DeleteAccount)
			users.GET("/me", userHandler.GetCurrentUserProfile)
			users.DELETE("/me", userHandler.DeleteAccount)
			users.GET("/me/history", userHandler.ListHistory)
			users.GET("/me/subscription", userHandler.GetSubscription)
			users.GET("/me/referrals", userHandler.ListReferrals)
			users.POST("/me/devices", userHandler.RegisterDevice)
			users.PUT("/me/notifications", userHandler.SetNotifications)
		}

		admin := apiV1.Group("/admin", middleware.RequireAdmin())
		{
			admin.POST("/sweep", adminHandler.RunSweep)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "StatWise backend is healthy."})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("API routes configured under /api/v1, /health and /metrics")
}
