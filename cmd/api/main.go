package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/roboclub/notification-api/internal/config"
	healthHandler "github.com/roboclub/notification-api/internal/handler/health"
	notificationHandler "github.com/roboclub/notification-api/internal/handler/notification"
	settingsHandler "github.com/roboclub/notification-api/internal/handler/settings"
	"github.com/roboclub/notification-api/internal/middleware"
	"github.com/roboclub/notification-api/internal/repository/postgres"
	"github.com/roboclub/notification-api/internal/router"
	deliveryService "github.com/roboclub/notification-api/internal/service/delivery"
	dispatchService "github.com/roboclub/notification-api/internal/service/dispatch"
	notificationService "github.com/roboclub/notification-api/internal/service/notification"
	preferenceService "github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/auth"
	"github.com/roboclub/notification-api/pkg/logger"
	redisBroker "github.com/roboclub/notification-api/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	notificationRepo := postgres.NewNotificationRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)
	jobRepo := postgres.NewDeliveryJobRepository(db)

	// Services
	notificationSvc := notificationService.NewService(notificationRepo, appLogger)
	preferenceSvc := preferenceService.NewService(settingsRepo, appLogger)
	tracker := deliveryService.NewTracker(notificationRepo, appLogger)
	dispatchSvc := dispatchService.NewService(notificationSvc, preferenceSvc, jobRepo, tracker, broker, appLogger)

	// Middleware
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Handlers
	notificationH := notificationHandler.NewHandler(notificationSvc, dispatchSvc, tracker)
	settingsH := settingsHandler.NewHandler(preferenceSvc)
	healthH := healthHandler.NewHandler(db)

	r := router.NewRouter(authMiddleware, notificationH, settingsH, healthH, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORS:           middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info(fmt.Sprintf("listening on :%d", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
