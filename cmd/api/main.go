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

	"assetbook/internal/api"
	"assetbook/internal/config"
	"assetbook/internal/database"
	"assetbook/internal/domain"
	"assetbook/internal/events"
	"assetbook/internal/logging"
	"assetbook/internal/metrics"
	"assetbook/internal/notify"
	"assetbook/internal/repository"
	"assetbook/internal/scheduler"
	"assetbook/internal/security"
	"assetbook/internal/service"
	"assetbook/internal/storage"
	"assetbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	quota := initQuotaStore(redisClient, logger)

	images, err := storage.NewLocalStore(cfg.Storage.MediaDir, cfg.Storage.MaxFileSizeMB, logging.Component(logger, "storage"))
	if err != nil {
		return err
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	mailLogger := logging.Component(logger, "mail")
	mailWorker := worker.NewMailWorker(
		notify.NewMailer(cfg.Email, mailLogger),
		redisClient,
		cfg.Email.QueueSize,
		worker.RetryPolicy{MaxRetries: cfg.Email.MaxRetries},
		mailLogger,
	)

	bus := events.NewEventBus()
	bus.OnError(func(e *events.Event, err error) {
		logger.Error().Err(err).Str("event", e.Type).Msg("event handler failed")
	})
	notify.NewNotifier(mailWorker, mailLogger).Subscribe(bus)

	svcLogger := logging.Component(logger, "service")
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	verification := security.NewVerificationTokens(cfg.Auth.VerificationSecret, time.Now, cfg.Auth.VerificationMaxAge)

	services := api.Services{
		Bookings: service.NewBookingService(db, db, db, images, quota, bus, cfg.Booking, svcLogger),
		Assets:   service.NewAssetService(db, db, images, svcLogger),
		Auth:     service.NewAuthService(db, tokens, verification, mailWorker, cfg.Auth.VerifyURL, svcLogger),
		Export:   service.NewExportService(db, db, cfg.Exports.Path, svcLogger),
		Images:   images,
	}

	if err := seedCatalog(ctx, services.Assets, logger); err != nil {
		return err
	}

	jobs, err := initScheduler(cfg, db, quota, mailWorker, logger)
	if err != nil {
		return err
	}

	go mailWorker.Start(ctx)
	jobs.Start()

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.Storage, services, logger)
	return serve(ctx, httpServer, jobs, cfg, logger)
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
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
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

// initQuotaStore prefers redis and keeps an in-memory copy for outages.
func initQuotaStore(client *redis.Client, logger *zerolog.Logger) domain.QuotaStore {
	memory := repository.NewMemoryStore()
	if client == nil {
		return memory
	}
	return repository.NewFailoverStore(repository.NewRedisStore(client, "assetbook"), memory, logging.Component(logger, "quota"))
}

func seedCatalog(ctx context.Context, assets *service.AssetService, logger *zerolog.Logger) error {
	assetsPath := os.Getenv("ASSETS_PATH")
	if assetsPath == "" {
		assetsPath = "configs/assets.yaml"
	}

	seeded, err := assets.SeedIfEmpty(ctx, assetsPath)
	if err != nil {
		logger.Error().Err(err).Str("assets_path", assetsPath).Msg("seed catalog")
		return err
	}
	if seeded {
		logger.Info().Str("assets_path", assetsPath).Msg("catalog seeded")
	}
	return nil
}

func initScheduler(
	cfg *config.Config,
	db *database.DB,
	quota domain.QuotaStore,
	mail domain.MailQueue,
	logger *zerolog.Logger,
) (*scheduler.Scheduler, error) {
	jobLogger := logging.Component(logger, "scheduler")
	s := scheduler.New(jobLogger)

	if cfg.Scheduler.Enabled {
		reminders := scheduler.NewReminders(db, db, quota, mail, jobLogger)
		if err := s.Add("booking_reminders", cfg.Scheduler.Reminders, reminders.Run); err != nil {
			return nil, err
		}
	}

	if cfg.Backup.Enabled {
		if db.Driver() != database.DriverSQLite {
			logger.Warn().Str("driver", db.Driver()).Msg("file backups are only supported for sqlite, skipping")
			return s, nil
		}
		backups := database.NewBackupService(db, cfg.Backup, jobLogger)
		if err := s.Add("database_backup", cfg.Backup.Schedule, backups.Run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func serve(
	ctx context.Context,
	httpServer *api.HTTPServer,
	jobs *scheduler.Scheduler,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Str("http_addr", httpServer.Addr()).Str("driver", cfg.Database.Driver).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	jobs.Stop(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
