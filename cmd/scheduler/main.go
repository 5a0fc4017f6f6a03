package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/config"
	"github.com/feral-file/ff-webhook-engine/internal/dispatcher"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
	"github.com/feral-file/ff-webhook-engine/internal/ratelimit"
	"github.com/feral-file/ff-webhook-engine/internal/registry"
	"github.com/feral-file/ff-webhook-engine/internal/retry"
	"github.com/feral-file/ff-webhook-engine/internal/scheduler"
	"github.com/feral-file/ff-webhook-engine/internal/store"
	"github.com/feral-file/ff-webhook-engine/internal/webhook"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSchedulerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "webhook-scheduler",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Webhook Retry Scheduler")

	// Connect to database
	db, err := store.Open(ctx, store.OpenConfig{
		DSN:             cfg.Database.DSN(),
		Debug:           cfg.Debug,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		MaxConnectWait:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Delivery.HTTPTimeout)

	sender := webhook.NewHTTPSender(httpClient, clock, cfg.Delivery.UserAgent)
	limitCfg := ratelimit.Config{
		RequestsPerSecond: cfg.Delivery.RateLimit.RequestsPerSecond,
		Burst:             cfg.Delivery.RateLimit.Burst,
		MaxWait:           cfg.Delivery.RateLimit.MaxWait,
	}
	if limitCfg.Enabled() {
		sender = ratelimit.NewThrottledSender(sender, ratelimit.NewHostLimiter(limitCfg, clock))
		logger.InfoCtx(ctx, "Per host rate limit enabled",
			zap.Float64("requests_per_second", limitCfg.RequestsPerSecond),
			zap.Int("burst", limitCfg.Burst))
	}

	d := dispatcher.NewDispatcher(
		&dispatcher.Config{DefaultMaxAttempts: cfg.Retry.DefaultMaxAttempts},
		dataStore,
		registry.NewRegistry(dataStore, clock, cfg.Retry.DefaultMaxAttempts),
		sender,
		webhook.NewPayloadBuilder(adapter.NewJSON(), adapter.NewJCS()),
		retry.NewPolicy(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		clock,
	)

	retryScheduler := scheduler.NewRetryScheduler(&scheduler.RetrySchedulerConfig{
		PollInterval:   cfg.Scheduler.PollInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		WorkerPoolSize: cfg.Scheduler.Worker.WorkerPoolSize,
		ClaimTimeout:   cfg.Scheduler.ClaimTimeout,
	}, dataStore, d, clock)

	logger.InfoCtx(ctx, "Initialized retry scheduler",
		zap.Duration("poll_interval", cfg.Scheduler.PollInterval),
		zap.Int("batch_size", cfg.Scheduler.BatchSize),
		zap.Int("worker_pool_size", cfg.Scheduler.Worker.WorkerPoolSize),
		zap.Duration("claim_timeout", cfg.Scheduler.ClaimTimeout),
	)

	// Start the scheduler in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := retryScheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// In-flight attempts finish within the HTTP timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Delivery.HTTPTimeout+5*time.Second)
	defer shutdownCancel()

	if err := retryScheduler.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}
	cancel()

	logger.InfoCtx(shutdownCtx, "Retry scheduler stopped")
}
