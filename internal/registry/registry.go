package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
	"github.com/feral-file/ff-webhook-engine/internal/store"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
	"github.com/feral-file/ff-webhook-engine/internal/webhook"
)

// RegisterInput represents a request to register a webhook subscription
type RegisterInput struct {
	OrganizationID string
	EventType      domain.EventType
	TargetURL      string
	// Secret is the signing key. A random secret is generated when empty.
	Secret      string
	Description string
	// MaxAttempts is the retry ceiling for deliveries of this subscription; 0 means default
	MaxAttempts int
}

// Registry manages which endpoints are notified for which event types, per organization
//
//go:generate mockgen -source=registry.go -destination=../mocks/registry.go -package=mocks -mock_names=Registry=MockRegistry
type Registry interface {
	// Register creates an active subscription. Fails with a ValidationError for bad input
	// and a ConflictError when (organization, event type, target URL) is already registered.
	Register(ctx context.Context, input RegisterInput) (*schema.WebhookSubscription, error)

	// Deactivate soft-disables a subscription. Delivery history and queued deliveries are kept.
	Deactivate(ctx context.Context, subscriptionID string) error

	// ListActive returns the active subscriptions of an organization for one event type
	ListActive(ctx context.Context, organizationID string, eventType domain.EventType) ([]schema.WebhookSubscription, error)

	// Get returns a subscription by its public ID
	Get(ctx context.Context, subscriptionID string) (*schema.WebhookSubscription, error)

	// List returns every subscription of an organization, active or not
	List(ctx context.Context, organizationID string) ([]schema.WebhookSubscription, error)

	// SuppressPending marks the pending and retrying deliveries of a subscription failed
	SuppressPending(ctx context.Context, subscriptionID string, reason string) (int64, error)
}

type registry struct {
	store              store.Store
	clock              adapter.Clock
	defaultMaxAttempts int
}

// NewRegistry creates a subscription registry
func NewRegistry(st store.Store, clock adapter.Clock, defaultMaxAttempts int) Registry {
	if defaultMaxAttempts <= 0 || defaultMaxAttempts > domain.MAX_MAX_ATTEMPTS {
		defaultMaxAttempts = domain.DEFAULT_MAX_ATTEMPTS
	}
	return &registry{
		store:              st,
		clock:              clock,
		defaultMaxAttempts: defaultMaxAttempts,
	}
}

func (r *registry) Register(ctx context.Context, input RegisterInput) (*schema.WebhookSubscription, error) {
	input.OrganizationID = strings.TrimSpace(input.OrganizationID)
	input.TargetURL = strings.TrimSpace(input.TargetURL)

	if err := r.validate(&input); err != nil {
		return nil, err
	}

	if input.Secret == "" {
		secret, err := webhook.GenerateSecret()
		if err != nil {
			return nil, err
		}
		input.Secret = secret
	}

	sub, err := r.store.CreateSubscription(ctx, store.CreateSubscriptionInput{
		SubscriptionID: uuid.New().String(),
		OrganizationID: input.OrganizationID,
		EventType:      input.EventType,
		TargetURL:      input.TargetURL,
		Secret:         input.Secret,
		Description:    input.Description,
		MaxAttempts:    input.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Registered webhook subscription",
		zap.String("subscription_id", sub.SubscriptionID),
		zap.String("organization_id", sub.OrganizationID),
		zap.String("event_type", sub.EventType),
		zap.String("target_url", sub.TargetURL),
	)

	return sub, nil
}

// validate checks and normalizes the registration input
func (r *registry) validate(input *RegisterInput) error {
	if input.OrganizationID == "" {
		return domain.NewValidationError("organization_id", "organization_id is required")
	}

	if !domain.IsValidEventType(string(input.EventType)) {
		return domain.NewValidationError("event_type",
			fmt.Sprintf("unsupported event type: %q", input.EventType))
	}

	if err := ValidateTargetURL(input.TargetURL); err != nil {
		return err
	}

	if strings.TrimSpace(input.Secret) != input.Secret {
		return domain.NewValidationError("secret", "secret must not have leading or trailing whitespace")
	}

	if input.MaxAttempts == 0 {
		input.MaxAttempts = r.defaultMaxAttempts
	}
	if input.MaxAttempts < 1 || input.MaxAttempts > domain.MAX_MAX_ATTEMPTS {
		return domain.NewValidationError("max_attempts",
			fmt.Sprintf("max_attempts must be between 1 and %d", domain.MAX_MAX_ATTEMPTS))
	}

	return nil
}

// ValidateTargetURL checks that a target URL is an absolute http(s) URL with a host
func ValidateTargetURL(rawURL string) error {
	if rawURL == "" {
		return domain.NewValidationError("target_url", "target_url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.NewValidationError("target_url", fmt.Sprintf("invalid target_url: %v", err))
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return domain.NewValidationError("target_url", "target_url must use http or https")
	}

	if u.Hostname() == "" {
		return domain.NewValidationError("target_url", "target_url must include a host")
	}

	return nil
}

func (r *registry) Deactivate(ctx context.Context, subscriptionID string) error {
	if err := r.store.DeactivateSubscription(ctx, subscriptionID, r.clock.Now()); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Deactivated webhook subscription", zap.String("subscription_id", subscriptionID))
	return nil
}

func (r *registry) ListActive(ctx context.Context, organizationID string, eventType domain.EventType) ([]schema.WebhookSubscription, error) {
	return r.store.ListActiveSubscriptions(ctx, organizationID, eventType)
}

func (r *registry) Get(ctx context.Context, subscriptionID string) (*schema.WebhookSubscription, error) {
	sub, err := r.store.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (r *registry) List(ctx context.Context, organizationID string) ([]schema.WebhookSubscription, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, domain.NewValidationError("organization_id", "organization_id is required")
	}
	return r.store.ListSubscriptions(ctx, organizationID)
}

func (r *registry) SuppressPending(ctx context.Context, subscriptionID string, reason string) (int64, error) {
	sub, err := r.Get(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	if reason == "" {
		reason = "suppressed by operator"
	}

	count, err := r.store.FailPendingDeliveries(ctx, sub.ID, reason, r.clock.Now())
	if err != nil {
		return 0, err
	}

	logger.InfoCtx(ctx, "Suppressed pending webhook deliveries",
		zap.String("subscription_id", subscriptionID),
		zap.Int64("count", count),
	)

	return count, nil
}
