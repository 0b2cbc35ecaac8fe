package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusguard/internal/config"
	handlers "campusguard/internal/handlers/shared"
	"campusguard/internal/middleware"
	"campusguard/internal/repositories/mongodb"
	"campusguard/internal/services"
	"campusguard/pkg/cache"
	"campusguard/pkg/database"
	"campusguard/pkg/email"
	"campusguard/pkg/logger"
	"campusguard/pkg/push"
	"campusguard/pkg/sms"
	"campusguard/pkg/websocket"
	"campusguard/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Structured logger
	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// MongoDB
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	// Schema migrations, including the one-active-session unique index
	if err := database.NewMigrator(db.Database).Up(); err != nil {
		appLogger.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Delivery providers
	pushProvider := buildPushProvider(cfg, appLogger)
	smsProvider := buildSMSProvider(cfg, appLogger)
	emailProvider := email.NewSMTPProvider(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password,
		cfg.SMTP.FromEmail, cfg.SMTP.FromName,
	)

	// WebSocket hub
	wsHandler := websocket.NewHandler()

	// Repositories
	sessionRepo := mongodb.NewSessionRepository(db.Database, redisCache)
	checkInRepo := mongodb.NewCheckInRepository(db.Database)
	sosRepo := mongodb.NewSOSRepository(db.Database, redisCache)
	notificationRepo := mongodb.NewNotificationRepository(db.Database)
	userRepo := mongodb.NewUserRepository(db.Database)

	// Services
	notificationService := services.NewNotificationService(cfg, notificationRepo, userRepo,
		pushProvider, smsProvider, emailProvider, wsHandler, appLogger)
	escalationService := services.NewEscalationService(sosRepo, userRepo, notificationService,
		redisCache, cfg.Safety.EscalationDedupTTL, wsHandler, appLogger)
	broadcastService := services.NewBroadcastService(sessionRepo, redisCache, wsHandler, appLogger)
	sessionService := services.NewSessionService(cfg, sessionRepo, checkInRepo, userRepo,
		escalationService, broadcastService, notificationService, wsHandler, appLogger)
	sosService := services.NewSOSService(sosRepo, userRepo, notificationService, wsHandler, appLogger)
	schedulerService := services.NewSchedulerService(cfg, sessionRepo, checkInRepo,
		escalationService, notificationService, wsHandler, nil, appLogger)

	// Background loops
	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go schedulerService.Start(backgroundCtx)
	go broadcastService.Start(backgroundCtx)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)
	sosHandler := handlers.NewSOSHandler(sosService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Initialize Gin router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	// API routes
	jwtSecret := cfg.Security.JWTSecret
	v1 := router.Group("/api/v1")
	{
		routes.SetupSessionRoutes(v1, jwtSecret, sessionHandler)
		routes.SetupSOSRoutes(v1, jwtSecret, sosHandler)
		routes.SetupNotificationRoutes(v1, jwtSecret, notificationHandler)

		ws := v1.Group("/ws")
		ws.Use(middleware.AuthRequired(jwtSecret))
		ws.GET("", wsHandler.HandleWebSocket)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"mongodb": "ok", "redis": "ok"}

		if err := db.Ping(); err != nil {
			status = http.StatusServiceUnavailable
			checks["mongodb"] = err.Error()
		}
		if _, err := redisCache.Exists(c.Request.Context(), "health"); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		}

		c.JSON(status, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
			"checks":  checks,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then stop the sweeps.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}

func buildPushProvider(cfg *config.Config, appLogger *logger.Logger) push.PushProvider {
	switch cfg.Push.Provider {
	case "apns":
		provider, err := push.NewAPNSProvider(
			cfg.Push.APNS.KeyFile, cfg.Push.APNS.KeyID,
			cfg.Push.APNS.TeamID, cfg.Push.APNS.BundleID,
			cfg.Push.APNS.Production,
		)
		if err != nil {
			appLogger.Warnf("APNS unavailable, push channel disabled: %v", err)
			return nil
		}
		return provider
	default:
		if cfg.Push.FCM.Credentials == "" {
			appLogger.Warn("FCM credentials not configured, push channel disabled")
			return nil
		}
		provider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			appLogger.Warnf("FCM unavailable, push channel disabled: %v", err)
			return nil
		}
		return provider
	}
}

func buildSMSProvider(cfg *config.Config, appLogger *logger.Logger) sms.SMSProvider {
	switch cfg.SMS.Provider {
	case "aws":
		provider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			appLogger.Warnf("AWS SNS unavailable, SMS channel disabled: %v", err)
			return nil
		}
		return provider
	default:
		if cfg.SMS.Twilio.AccountSID == "" {
			appLogger.Warn("Twilio not configured, SMS channel disabled")
			return nil
		}
		return sms.NewTwilioProvider(
			cfg.SMS.Twilio.AccountSID,
			cfg.SMS.Twilio.AuthToken,
			cfg.SMS.Twilio.FromNumber,
		)
	}
}
