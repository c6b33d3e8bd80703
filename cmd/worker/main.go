package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/roboclub/notification-api/internal/config"
	"github.com/roboclub/notification-api/internal/email"
	"github.com/roboclub/notification-api/internal/repository/postgres"
	deliveryService "github.com/roboclub/notification-api/internal/service/delivery"
	preferenceService "github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/logger"
	redisBroker "github.com/roboclub/notification-api/pkg/messaging/redis"
	"github.com/roboclub/notification-api/pkg/metrics"
	"github.com/roboclub/notification-api/pkg/worker"
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
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	notificationRepo := postgres.NewNotificationRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)
	jobRepo := postgres.NewDeliveryJobRepository(db)

	preferenceSvc := preferenceService.NewService(settingsRepo, appLogger)
	tracker := deliveryService.NewTracker(notificationRepo, appLogger)
	sender := email.NewSMTPSender(cfg.SMTP)

	dispatcher := worker.NewDispatcher(
		jobRepo,
		notificationRepo,
		preferenceSvc,
		tracker,
		sender,
		broker,
		worker.DispatcherConfig{
			BatchSize:    cfg.Dispatcher.BatchSize,
			PollInterval: cfg.Dispatcher.PollInterval(),
			MaxRetries:   cfg.Dispatcher.MaxRetries,
			RetryDelay:   cfg.Dispatcher.RetryDelay(),
		},
		appLogger,
		metrics.NewMetrics("notification_api", "dispatcher"),
	)

	go serveHealth(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down dispatcher...")
		cancel()
	}()

	dispatcher.Start(ctx)
}

func serveHealth(l *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(":8081", mux); err != nil {
		l.Error(err, "health endpoint failed")
	}
}
