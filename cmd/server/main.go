package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"statwise-backend/internal/api"
	"statwise-backend/internal/config"
	"statwise-backend/internal/core"
	"statwise-backend/internal/db"
	"statwise-backend/internal/firebase"
	"statwise-backend/internal/gateway"
	"statwise-backend/internal/middleware"
	"statwise-backend/internal/scheduler"
	"statwise-backend/pkg/cache"
)

func main() {
	// --- 1. Load .env (local development only) ---
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	// --- 2. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 3. Initialize Logger (Zap) ---
	zapLogger, err := newLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded successfully.", zap.String("logLevel", appConfig.LogLevel))

	// --- 4. Initialize Firebase Admin SDK (Firestore, Auth, Messaging) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	clients, err := firebase.NewClients(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	defer clients.Close()

	// --- 5. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(clients.Firestore)
	historyRepo := db.NewFirestoreHistoryRepository(clients.Firestore)
	subscriptionRepo := db.NewFirestoreSubscriptionRepository(clients.Firestore)
	referralRepo := db.NewFirestoreReferralRepository(clients.Firestore)
	ledger := db.NewFirestoreLedgerStore(clients.Firestore)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 6. Sweeper lock: Redis when configured, in-process otherwise ---
	var locker core.Locker
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		locker = cache.NewRedisLocker(redisCache, zapLogger)
	} else {
		zapLogger.Warn("REDIS_ADDR is not configured; sweeper lock is local to this process.")
		locker = cache.NewLocalLocker()
	}

	// --- 7. Initialize Services ---
	flutterwave := gateway.NewFlutterwaveClient(appConfig.FlutterwaveBaseURL, appConfig.FlutterwaveSecretKey, appConfig.GatewayTimeout, zapLogger)

	historyService := core.NewHistoryService(historyRepo)
	services := api.Services{
		Payments: core.NewPaymentService(ledger, flutterwave, core.PaymentOptions{
			Currency:           appConfig.PaymentCurrency,
			ReferralRewardDays: appConfig.ReferralRewardDays,
			PreserveHigherTier: appConfig.ReferralPreserveHigherTier,
		}, zapLogger),
		Sweeper: core.NewSweeperService(ledger, historyService, locker, zapLogger),
		Notifications: core.NewNotificationService(userRepo, clients.Messaging, core.NotificationOptions{
			IconURL:      appConfig.NotificationIconURL,
			DefaultLink:  appConfig.NotificationDefaultLink,
			RequireAdmin: appConfig.NotifyRequireAdmin,
		}, zapLogger),
		Eraser:  core.NewEraserService(userRepo, ledger, clients.Auth, zapLogger),
		Users:   core.NewUserService(userRepo, subscriptionRepo, referralRepo, ledger, zapLogger),
		History: historyService,
	}
	zapLogger.Info("Core services initialized successfully.")

	// --- 8. Start the expiry sweeper ---
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	sweepRunner := scheduler.NewRunner("expiry-sweeper", appConfig.SweepInterval, func(ctx context.Context) error {
		_, err := services.Sweeper.Sweep(ctx)
		return err
	}, zapLogger)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweepRunner.Run(appCtx, appConfig.SweepOnStart)
	}()

	// --- 9. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL == "" {
		zapLogger.Warn("CLIENT_URL is not configured; CORS allows every origin.")
	}
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))

	api.SetupRoutes(router, clients.Auth, zapLogger, services)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	stopApp()
	<-sweeperDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}

// newLogger builds a JSON production logger or a console development logger.
func newLogger(level, format string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if strings.ToLower(format) == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = atomicLevel
	return cfg.Build()
}
