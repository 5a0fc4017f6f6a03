package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/dispatcher"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

type publisher struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	config Config
	json   adapter.JSON
	clock  adapter.Clock
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON, clock adapter.Clock) (Publisher, error) {
	nc, js, err := natsJS.Connect(cfg.URL, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}

	return &publisher{
		nc:     nc,
		js:     js,
		config: cfg,
		json:   jsonAdapter,
		clock:  clock,
	}, nil
}

// PublishEvent publishes a domain event to NATS JetStream, retrying while the broker is unavailable
func (p *publisher) PublishEvent(ctx context.Context, event domain.Event) (string, error) {
	event.Normalize()
	if err := event.Validate(); err != nil {
		return "", err
	}
	if event.ID == "" {
		event.ID = dispatcher.NewEventID(p.clock.Now())
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.clock.Now()
	}

	data, err := p.json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := Subject(p.config.SubjectPrefix, event.Type)
	logger.DebugCtx(ctx, "Publishing event", zap.String("subject", subject), zap.String("event_id", event.ID))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = p.config.PublishTimeout

	operation := func() error {
		// The message ID lets JetStream drop a retried publish that already landed
		_, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
		return err
	}

	var attemptCount int
	notify := func(err error, next time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Event publish failed, retrying",
			zap.Error(err),
			zap.String("subject", subject),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", next),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return "", fmt.Errorf("failed to publish event: %w", err)
	}

	return event.ID, nil
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
