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
	"github.com/feral-file/ff-webhook-engine/internal/messaging"
	"github.com/feral-file/ff-webhook-engine/internal/registry"
	"github.com/feral-file/ff-webhook-engine/internal/retry"
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
	cfg, err := config.LoadEventBridgeConfig(*configFile, *envPath)
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
			"service": "webhook-event-bridge",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Event Bridge")

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
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	d := dispatcher.NewDispatcher(
		&dispatcher.Config{DefaultMaxAttempts: cfg.Retry.DefaultMaxAttempts},
		dataStore,
		registry.NewRegistry(dataStore, clock, cfg.Retry.DefaultMaxAttempts),
		webhook.NewHTTPSender(adapter.NewHTTPClient(cfg.Delivery.HTTPTimeout), clock, cfg.Delivery.UserAgent),
		webhook.NewPayloadBuilder(jsonAdapter, adapter.NewJCS()),
		retry.NewPolicy(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		clock,
	)

	// Create bridge
	eventBridge, err := messaging.NewBridge(
		messaging.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			ConsumerName:   cfg.NATS.ConsumerName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			AckWait:        cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
		},
		natsJS,
		d,
		jsonAdapter,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event bridge", zap.Error(err))
	}
	defer eventBridge.Close()
	logger.InfoCtx(ctx, "Event bridge created",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		if err := eventBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
	}
	cancel()

	// Wait for in-flight messages, bounded
	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
		logger.Warn("Event bridge did not stop in time")
	}

	logger.Info("Event Bridge stopped")
}
