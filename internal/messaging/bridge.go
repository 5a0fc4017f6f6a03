package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/dispatcher"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

// Bridge consumes domain events from JetStream and enqueues webhook deliveries for them
type Bridge interface {
	// Run starts the event bridge. Blocks until the context is canceled.
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	dispatcher dispatcher.Dispatcher
	json       adapter.JSON
	config     Config
	wg         sync.WaitGroup
}

// NewBridge creates a new event bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	d dispatcher.Dispatcher,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
	nc, js, err := natsJS.Connect(cfg.URL, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:         nc,
		js:         js,
		dispatcher: d,
		json:       jsonAdapter,
		config:     cfg,
	}, nil
}

// Run starts the event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting event bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	// Subscribe to every event type
	subject := b.config.SubjectPrefix + ".>"

	err := b.js.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      b.config.StreamName,
		Subjects:  []string{subject},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWait,
		MaxDeliver:    b.config.MaxDeliver,
		FilterSubject: subject,
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.InfoCtx(ctx, "Started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down event bridge")
			b.wg.Wait()
			return ctx.Err()
		case msg := <-msgChan:
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleMessage(ctx, msg)
			}()
		}
	}
}

// handleMessage processes a single NATS message
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, err := msg.Metadata()
	if err != nil {
		metadata = nil
	}

	var event domain.Event
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to unmarshal event: %w", err), zap.String("subject", msg.Subject()))
		// Unparseable data is never going to succeed
		b.term(ctx, msg)
		return
	}

	if event.Type == "" {
		event.Type = eventTypeFromSubject(b.config.SubjectPrefix, msg.Subject())
	}

	var numDelivered uint64
	if metadata != nil {
		numDelivered = metadata.NumDelivered
		// Redeliveries of an event without an ID must map to the same deliveries
		if event.ID == "" {
			event.ID = fmt.Sprintf("%s-%d", metadata.Stream, metadata.Sequence.Stream)
		}
	}

	ctx = logger.WithFields(ctx,
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type.String()),
		zap.String("organization_id", event.OrganizationID),
		zap.Uint64("delivery_count", numDelivered),
	)
	logger.InfoCtx(ctx, "Received event")

	ids, err := b.dispatcher.Enqueue(ctx, event)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			logger.WarnCtx(ctx, "Dropping invalid event", zap.Error(err))
			b.term(ctx, msg)
			return
		}

		logger.ErrorCtx(ctx, fmt.Errorf("failed to enqueue event: %w", err))
		// NAK to retry; deliveries are deduplicated by (subscription, event id)
		if err := msg.Nak(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to NAK message: %w", err))
		}
		return
	}

	if err := msg.Ack(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to ACK message: %w", err))
		return
	}

	logger.InfoCtx(ctx, "Event enqueued", zap.Int("deliveries", len(ids)))
}

func (b *bridge) term(ctx context.Context, msg adapter.Message) {
	if err := msg.Term(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to terminate message: %w", err))
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	b.nc.Close()
}
