package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
	"github.com/feral-file/ff-webhook-engine/internal/registry"
	"github.com/feral-file/ff-webhook-engine/internal/retry"
	"github.com/feral-file/ff-webhook-engine/internal/store"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
	"github.com/feral-file/ff-webhook-engine/internal/webhook"
)

// completeTimeout bounds the outcome write once the HTTP attempt is over
const completeTimeout = 10 * time.Second

// Outcome is the result of one AttemptDelivery call
type Outcome string

const (
	// OutcomeSkipped means nothing was sent: the delivery is terminal or another worker owns it
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDelivered means the endpoint answered 2xx
	OutcomeDelivered Outcome = "delivered"
	// OutcomeRetrying means the attempt failed and another one is scheduled
	OutcomeRetrying Outcome = "retrying"
	// OutcomeFailed means the delivery reached the failed state
	OutcomeFailed Outcome = "failed"
)

// AttemptResult describes what one AttemptDelivery call did
type AttemptResult struct {
	DeliveryID  uint64
	Outcome     Outcome
	Attempts    int
	StatusCode  int
	NextRetryAt *time.Time
	// Err is the delivery error recorded on the row: a *domain.TransientDeliveryError,
	// *domain.ConfigurationError or *domain.ExhaustedRetriesError. Nil when delivered or skipped.
	Err error
}

// Dispatcher turns domain events into deliveries and drives each delivery to a terminal state
//
//go:generate mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks -mock_names=Dispatcher=MockDispatcher
type Dispatcher interface {
	// Enqueue creates one pending delivery per active subscription matching the event's
	// organization and type. Returns the IDs of the deliveries created.
	Enqueue(ctx context.Context, event domain.Event) ([]uint64, error)

	// AttemptDelivery claims a delivery and performs one HTTP attempt. Terminal deliveries and
	// deliveries claimed by another worker are left untouched.
	AttemptDelivery(ctx context.Context, deliveryID uint64) (*AttemptResult, error)
}

// Config holds dispatcher configuration
type Config struct {
	// DefaultMaxAttempts applies to subscriptions without their own ceiling
	DefaultMaxAttempts int
}

type dispatcher struct {
	config   *Config
	store    store.Store
	registry registry.Registry
	sender   webhook.Sender
	payload  *webhook.PayloadBuilder
	policy   *retry.Policy
	clock    adapter.Clock
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	config *Config,
	st store.Store,
	reg registry.Registry,
	sender webhook.Sender,
	payload *webhook.PayloadBuilder,
	policy *retry.Policy,
	clock adapter.Clock,
) Dispatcher {
	if config == nil {
		config = &Config{}
	}
	if config.DefaultMaxAttempts <= 0 {
		config.DefaultMaxAttempts = domain.DEFAULT_MAX_ATTEMPTS
	}
	return &dispatcher{
		config:   config,
		store:    st,
		registry: reg,
		sender:   sender,
		payload:  payload,
		policy:   policy,
		clock:    clock,
	}
}

// NewEventID returns a time-sortable event ID
func NewEventID(t time.Time) string {
	return ulid.MustNewDefault(t).String()
}

func (d *dispatcher) Enqueue(ctx context.Context, event domain.Event) ([]uint64, error) {
	event.Normalize()
	if err := event.Validate(); err != nil {
		return nil, err
	}

	now := d.clock.Now()
	if event.ID == "" {
		event.ID = NewEventID(now)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}

	ctx = logger.WithFields(ctx,
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type.String()),
		zap.String("organization_id", event.OrganizationID),
	)

	subs, err := d.registry.ListActive(ctx, event.OrganizationID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	if len(subs) == 0 {
		logger.DebugCtx(ctx, "No active subscriptions for event")
		return []uint64{}, nil
	}

	// One payload for every subscription: the bytes each endpoint receives are identical
	payload, err := d.payload.Build(webhook.Envelope{
		EventID:        event.ID,
		EventType:      event.Type.String(),
		OrganizationID: event.OrganizationID,
		OccurredAt:     event.OccurredAt.UTC(),
		Data:           event.Data,
	})
	if err != nil {
		return nil, err
	}

	inputs := make([]store.CreateDeliveryInput, 0, len(subs))
	for _, sub := range subs {
		inputs = append(inputs, store.CreateDeliveryInput{
			SubscriptionID: sub.ID,
			OrganizationID: event.OrganizationID,
			EventID:        event.ID,
			EventType:      event.Type,
			Payload:        payload,
			MaxAttempts:    d.maxAttempts(sub),
			NextRetryAt:    now,
		})
	}

	ids, err := d.store.CreateDeliveries(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveries: %w", err)
	}

	logger.InfoCtx(ctx, "Enqueued webhook deliveries",
		zap.Int("subscriptions", len(subs)),
		zap.Int("created", len(ids)),
	)

	return ids, nil
}

func (d *dispatcher) maxAttempts(sub schema.WebhookSubscription) int {
	if sub.MaxAttempts <= 0 {
		return d.config.DefaultMaxAttempts
	}
	if sub.MaxAttempts > domain.MAX_MAX_ATTEMPTS {
		return domain.MAX_MAX_ATTEMPTS
	}
	return sub.MaxAttempts
}

func (d *dispatcher) AttemptDelivery(ctx context.Context, deliveryID uint64) (*AttemptResult, error) {
	delivery, err := d.store.GetDeliveryByID(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	if delivery == nil {
		return nil, domain.ErrDeliveryNotFound
	}

	ctx = logger.WithDelivery(ctx, delivery.ID, delivery.EventType)

	skipped := &AttemptResult{
		DeliveryID: delivery.ID,
		Outcome:    OutcomeSkipped,
		Attempts:   delivery.Attempts,
	}

	if delivery.Status.IsTerminal() || delivery.Status == schema.WebhookDeliveryStatusInFlight {
		logger.DebugCtx(ctx, "Delivery not dispatchable, skipping", zap.String("status", string(delivery.Status)))
		return skipped, nil
	}

	now := d.clock.Now()
	if delivery.NextRetryAt != nil && delivery.NextRetryAt.After(now) {
		logger.DebugCtx(ctx, "Delivery not due yet, skipping", zap.Time("next_retry_at", *delivery.NextRetryAt))
		return skipped, nil
	}

	claimed, err := d.store.ClaimDelivery(ctx, delivery.ID, delivery.Attempts, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		logger.DebugCtx(ctx, "Delivery claimed by another worker, skipping")
		return skipped, nil
	}

	// From here on the row is in_flight and owned by this call
	sub, err := d.store.GetSubscriptionByPK(ctx, delivery.SubscriptionID)
	if err != nil {
		// The claim is released by the stale claim reaper
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if cfgErr := checkSubscription(delivery, sub); cfgErr != nil {
		return d.fail(ctx, delivery, cfgErr, nil, 0)
	}

	attempt := delivery.Attempts + 1
	start := d.clock.Now()
	resp, sendErr := d.sender.Send(ctx, webhook.Request{
		URL:        sub.TargetURL,
		Secret:     sub.Secret,
		Body:       []byte(delivery.Payload),
		EventID:    delivery.EventID,
		EventType:  delivery.EventType,
		DeliveryID: delivery.ID,
		Attempt:    attempt,
		Timestamp:  start,
	})

	duration := d.clock.Since(start)
	if resp != nil {
		duration = resp.Duration
	}

	var cfgErr *domain.ConfigurationError
	if errors.As(sendErr, &cfgErr) {
		cfgErr.SubscriptionID = sub.SubscriptionID
		return d.fail(ctx, delivery, cfgErr, resp, duration)
	}

	if sendErr == nil {
		return d.succeed(ctx, delivery, resp, duration)
	}

	var transient *domain.TransientDeliveryError
	if !errors.As(sendErr, &transient) {
		transient = &domain.TransientDeliveryError{Err: sendErr}
	}
	return d.retryOrExhaust(ctx, delivery, transient, resp, duration)
}

// checkSubscription reports problems no retry can fix
func checkSubscription(delivery *schema.WebhookDelivery, sub *schema.WebhookSubscription) *domain.ConfigurationError {
	if sub == nil {
		return &domain.ConfigurationError{
			SubscriptionID: fmt.Sprintf("%d", delivery.SubscriptionID),
			Reason:         "subscription no longer exists",
		}
	}
	if strings.TrimSpace(sub.Secret) == "" {
		return &domain.ConfigurationError{SubscriptionID: sub.SubscriptionID, Reason: "signing secret is empty"}
	}
	u, err := url.Parse(sub.TargetURL)
	if err != nil {
		return &domain.ConfigurationError{SubscriptionID: sub.SubscriptionID, Reason: fmt.Sprintf("invalid target url: %v", err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return &domain.ConfigurationError{SubscriptionID: sub.SubscriptionID, Reason: "target url must be an absolute http(s) url"}
	}
	return nil
}

func (d *dispatcher) succeed(ctx context.Context, delivery *schema.WebhookDelivery, resp *webhook.Response, duration time.Duration) (*AttemptResult, error) {
	now := d.clock.Now()
	input := completeInput(delivery, resp, now, duration)
	input.Status = schema.WebhookDeliveryStatusDelivered
	input.Attempts = delivery.Attempts
	input.DeliveredAt = &now

	if err := d.complete(ctx, input); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Webhook delivered",
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return &AttemptResult{
		DeliveryID: delivery.ID,
		Outcome:    OutcomeDelivered,
		Attempts:   delivery.Attempts,
		StatusCode: resp.StatusCode,
	}, nil
}

func (d *dispatcher) retryOrExhaust(ctx context.Context, delivery *schema.WebhookDelivery, transient *domain.TransientDeliveryError, resp *webhook.Response, duration time.Duration) (*AttemptResult, error) {
	now := d.clock.Now()
	attempts := delivery.Attempts + 1

	input := completeInput(delivery, resp, now, duration)
	input.Attempts = attempts
	input.ErrorMessage = transient.Error()

	result := &AttemptResult{
		DeliveryID: delivery.ID,
		Attempts:   attempts,
		StatusCode: transient.StatusCode,
	}

	if attempts < delivery.MaxAttempts {
		delay := d.policy.WithRetryAfter(d.policy.Delay(attempts), transient.RetryAfter)
		nextRetryAt := now.Add(delay)
		input.Status = schema.WebhookDeliveryStatusRetrying
		input.NextRetryAt = &nextRetryAt

		if err := d.complete(ctx, input); err != nil {
			return nil, err
		}

		logger.WarnCtx(ctx, "Webhook attempt failed, retry scheduled",
			zap.Error(transient),
			zap.Int("attempts", attempts),
			zap.Int("max_attempts", delivery.MaxAttempts),
			zap.Duration("delay", delay),
		)

		result.Outcome = OutcomeRetrying
		result.NextRetryAt = &nextRetryAt
		result.Err = transient
		return result, nil
	}

	exhausted := &domain.ExhaustedRetriesError{
		DeliveryID: delivery.ID,
		Attempts:   attempts,
		Last:       transient,
	}
	kind := schema.WebhookFailureKindExhausted
	input.Status = schema.WebhookDeliveryStatusFailed
	input.FailureKind = &kind
	input.ErrorMessage = exhausted.Error()

	if err := d.complete(ctx, input); err != nil {
		return nil, err
	}

	logger.ErrorCtx(ctx, exhausted, zap.Int("max_attempts", delivery.MaxAttempts))

	result.Outcome = OutcomeFailed
	result.Err = exhausted
	return result, nil
}

// fail moves a claimed delivery to failed without consuming retry budget
func (d *dispatcher) fail(ctx context.Context, delivery *schema.WebhookDelivery, cfgErr *domain.ConfigurationError, resp *webhook.Response, duration time.Duration) (*AttemptResult, error) {
	kind := schema.WebhookFailureKindConfiguration
	input := completeInput(delivery, resp, d.clock.Now(), duration)
	input.Status = schema.WebhookDeliveryStatusFailed
	input.Attempts = delivery.Attempts
	input.FailureKind = &kind
	input.ErrorMessage = cfgErr.Error()

	if err := d.complete(ctx, input); err != nil {
		return nil, err
	}

	logger.ErrorCtx(ctx, cfgErr)

	return &AttemptResult{
		DeliveryID: delivery.ID,
		Outcome:    OutcomeFailed,
		Attempts:   delivery.Attempts,
		Err:        cfgErr,
	}, nil
}

// complete records the outcome even when ctx was cancelled mid-attempt, so a finished send is
// not repeated after the claim times out
func (d *dispatcher) complete(ctx context.Context, input store.CompleteAttemptInput) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()

	err := d.store.CompleteAttempt(writeCtx, input)
	if errors.Is(err, domain.ErrDeliveryClaimLost) {
		logger.WarnCtx(ctx, "Delivery claim lost before the outcome was written",
			zap.String("status", string(input.Status)))
	}
	return err
}

func completeInput(delivery *schema.WebhookDelivery, resp *webhook.Response, at time.Time, duration time.Duration) store.CompleteAttemptInput {
	input := store.CompleteAttemptInput{
		DeliveryID:      delivery.ID,
		ClaimedAttempts: delivery.Attempts,
		AttemptedAt:     at,
		Duration:        duration,
	}
	if resp != nil {
		status := resp.StatusCode
		input.ResponseStatus = &status
		input.ResponseBody = resp.Body
		input.ResponseHeaders = resp.Headers
	}
	return input
}
