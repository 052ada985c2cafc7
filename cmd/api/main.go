package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourbook/internal/api"
	"tourbook/internal/auth"
	"tourbook/internal/config"
	"tourbook/internal/database"
	"tourbook/internal/domain"
	"tourbook/internal/events"
	"tourbook/internal/logging"
	"tourbook/internal/metrics"
	"tourbook/internal/notify"
	"tourbook/internal/repository"
	"tourbook/internal/service"
	"tourbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const memoryCleanupInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	bus, amqpPublisher := initEvents(cfg, logger)
	if amqpPublisher != nil {
		defer amqpPublisher.Close()
	}

	notifier := worker.NewNotificationWorker(
		db,
		initMailer(cfg, logger),
		redisClient,
		worker.RetryPolicyFromConfig(cfg.Worker),
		worker.Options{
			PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
			BatchSize:    cfg.Worker.BatchSize,
			AdminAddress: cfg.Mail.AdminAddress,
		},
		logging.Component(logger, "notification-worker"),
	)
	go notifier.Start(ctx)

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backups.Start(ctx)
	}

	serviceLogger := logging.Component(logger, "service")
	availability := service.NewAvailabilityService(
		db, service.NewCapacityPolicy(cfg.Booking), cfg.Booking.ExcludeInactive, serviceLogger,
	)
	deps := api.Dependencies{
		Bookings: service.NewBookingService(
			db, availability, bus, notifier, cfg.Booking.StrictTransitions, serviceLogger,
		),
		Availability: availability,
		Auth: service.NewAuthService(
			db,
			auth.NewTokenManager(cfg.Auth.JWTSecret),
			time.Duration(cfg.Auth.UserTokenTTLHours)*time.Hour,
			time.Duration(cfg.Auth.AdminTokenTTLHours)*time.Hour,
			serviceLogger,
		),
		Contacts:    service.NewContactService(db, serviceLogger),
		Submissions: initSubmissionStore(ctx, redisClient, logger),
		Checks:      readinessChecks(db, redisClient),
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.Exports, deps, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initEvents(cfg *config.Config, logger *zerolog.Logger) (*events.EventBus, *events.AMQPPublisher) {
	bus := events.NewEventBus()
	eventLogger := logging.Component(logger, "events")
	for _, eventType := range events.AllEventTypes {
		bus.Subscribe(eventType, func(event *events.Event) error {
			eventLogger.Debug().Str("event", event.Type).RawJSON("payload", event.Payload).Msg("Booking event")
			return nil
		})
	}

	if cfg.Events.AMQPURL == "" {
		return bus, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, eventLogger)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, events stay in process")
		return bus, nil
	}
	publisher.Attach(bus)
	logger.Info().Str("exchange", cfg.Events.Exchange).Msg("rabbitmq connected")
	return bus, publisher
}

func initMailer(cfg *config.Config, logger *zerolog.Logger) domain.Mailer {
	mailLogger := logging.Component(logger, "mailer")
	if cfg.Mail.Host == "" {
		logger.Warn().Msg("mail host not configured, notifications are only logged")
		return notify.NewLogMailer(mailLogger)
	}
	return notify.NewSMTPMailer(cfg.Mail, mailLogger)
}

func initSubmissionStore(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimitStore {
	memory := repository.NewMemoryRateLimitStore()
	go memory.StartCleanup(ctx, memoryCleanupInterval)

	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimitStore(
		repository.NewRedisRateLimitStore(redisClient), memory, logging.Component(logger, "rate-limit"),
	)
}

func readinessChecks(db *database.DB, redisClient *redis.Client) []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{Name: "database", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return repository.Ping(ctx, redisClient)
		}})
	}
	return checks
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
