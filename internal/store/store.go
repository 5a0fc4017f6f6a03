package store

import (
	"context"
	"time"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

// CreateSubscriptionInput represents the input for creating a webhook subscription
type CreateSubscriptionInput struct {
	SubscriptionID string
	OrganizationID string
	EventType      domain.EventType
	TargetURL      string
	Secret         string
	Description    string
	MaxAttempts    int
}

// CreateDeliveryInput represents the input for creating a pending webhook delivery
type CreateDeliveryInput struct {
	SubscriptionID uint64
	OrganizationID string
	EventID        string
	EventType      domain.EventType
	Payload        []byte
	MaxAttempts    int
	NextRetryAt    time.Time
}

// CompleteAttemptInput records the outcome of one dispatch attempt on a claimed delivery
type CompleteAttemptInput struct {
	DeliveryID uint64
	// ClaimedAttempts is the attempt counter observed when the claim was taken
	ClaimedAttempts int
	// Status is the resulting status: delivered, retrying or failed
	Status schema.WebhookDeliveryStatus
	// Attempts is the new attempt counter
	Attempts        int
	NextRetryAt     *time.Time
	DeliveredAt     *time.Time
	FailureKind     *schema.WebhookFailureKind
	ResponseStatus  *int
	ResponseBody    string
	ResponseHeaders map[string]string
	ErrorMessage    string
	AttemptedAt     time.Time
	Duration        time.Duration
}

// DeliveryFilter represents filters for listing deliveries
type DeliveryFilter struct {
	OrganizationID string
	SubscriptionID *uint64
	Status         *schema.WebhookDeliveryStatus
	Limit          int
	Offset         int
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateSubscription creates a subscription; returns a ConflictError for a duplicate
	// (organization, event type, target URL)
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*schema.WebhookSubscription, error)
	// GetSubscriptionByID retrieves a subscription by its public ID, nil when not found
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*schema.WebhookSubscription, error)
	// GetSubscriptionByPK retrieves a subscription by its sequence ID, nil when not found
	GetSubscriptionByPK(ctx context.Context, id uint64) (*schema.WebhookSubscription, error)
	// ListSubscriptions lists all subscriptions of an organization
	ListSubscriptions(ctx context.Context, organizationID string) ([]schema.WebhookSubscription, error)
	// ListActiveSubscriptions lists active subscriptions for an organization and event type
	ListActiveSubscriptions(ctx context.Context, organizationID string, eventType domain.EventType) ([]schema.WebhookSubscription, error)
	// DeactivateSubscription soft-disables a subscription; returns ErrSubscriptionNotFound when missing
	DeactivateSubscription(ctx context.Context, subscriptionID string, at time.Time) error

	// CreateDeliveries creates pending deliveries in one transaction and returns the IDs of the
	// rows inserted; rows already present for (subscription, event) are skipped
	CreateDeliveries(ctx context.Context, inputs []CreateDeliveryInput) ([]uint64, error)
	// GetDeliveryByID retrieves a delivery, nil when not found
	GetDeliveryByID(ctx context.Context, id uint64) (*schema.WebhookDelivery, error)
	// ListDeliveries lists deliveries newest first
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]schema.WebhookDelivery, error)
	// ListDeliveryAttempts lists the attempt log of a delivery
	ListDeliveryAttempts(ctx context.Context, deliveryID uint64) ([]schema.WebhookDeliveryAttempt, error)
	// GetDueDeliveryIDs returns pending/retrying deliveries whose next_retry_at is not after now
	GetDueDeliveryIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	// ClaimDelivery atomically moves a pending/retrying delivery with the expected attempt
	// counter to in_flight once next_retry_at is not after at. Returns false when another worker
	// won, the row moved on, or it is not due yet.
	ClaimDelivery(ctx context.Context, id uint64, expectedAttempts int, at time.Time) (bool, error)
	// CompleteAttempt writes the outcome of a claimed delivery and appends to the attempt log.
	// Returns domain.ErrDeliveryClaimLost when the row is no longer claimed with the same counter.
	CompleteAttempt(ctx context.Context, input CompleteAttemptInput) error
	// ReleaseStaleClaims returns in_flight deliveries claimed before claimedBefore to retrying,
	// or to failed when they were suppressed while in flight
	ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time, now time.Time) (int64, error)
	// FailPendingDeliveries marks every pending/retrying delivery of a subscription as failed and
	// flags in_flight ones so their current attempt is the last. Returns the rows affected.
	FailPendingDeliveries(ctx context.Context, subscriptionID uint64, reason string, at time.Time) (int64, error)
}
