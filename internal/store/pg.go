package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

const (
	// pgUniqueViolation is the SQLSTATE for unique_violation
	pgUniqueViolation = "23505"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// isDuplicateKey reports whether err is a unique constraint violation
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// =============================================================================
// Subscriptions
// =============================================================================

// CreateSubscription creates a new webhook subscription
func (s *pgStore) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*schema.WebhookSubscription, error) {
	now := time.Now()
	sub := &schema.WebhookSubscription{
		SubscriptionID: input.SubscriptionID,
		OrganizationID: input.OrganizationID,
		EventType:      string(input.EventType),
		TargetURL:      input.TargetURL,
		Secret:         input.Secret,
		Description:    input.Description,
		IsActive:       true,
		MaxAttempts:    input.MaxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Create(sub).Error
	if err != nil {
		if isDuplicateKey(err) {
			return nil, &domain.ConflictError{
				OrganizationID: input.OrganizationID,
				EventType:      input.EventType,
				TargetURL:      input.TargetURL,
				Err:            err,
			}
		}
		return nil, fmt.Errorf("failed to create webhook subscription: %w", err)
	}
	return sub, nil
}

// GetSubscriptionByID retrieves a subscription by its public ID
func (s *pgStore) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*schema.WebhookSubscription, error) {
	var sub schema.WebhookSubscription
	err := s.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscriptionByPK retrieves a subscription by its sequence ID
func (s *pgStore) GetSubscriptionByPK(ctx context.Context, id uint64) (*schema.WebhookSubscription, error) {
	var sub schema.WebhookSubscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook subscription: %w", err)
	}
	return &sub, nil
}

// ListSubscriptions lists all subscriptions of an organization
func (s *pgStore) ListSubscriptions(ctx context.Context, organizationID string) ([]schema.WebhookSubscription, error) {
	var subs []schema.WebhookSubscription
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	return subs, nil
}

// ListActiveSubscriptions lists active subscriptions matching an organization and event type
func (s *pgStore) ListActiveSubscriptions(ctx context.Context, organizationID string, eventType domain.EventType) ([]schema.WebhookSubscription, error) {
	var subs []schema.WebhookSubscription
	err := s.db.WithContext(ctx).
		Where("is_active").
		Where("organization_id = ? AND event_type = ?", organizationID, string(eventType)).
		Order("id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active webhook subscriptions: %w", err)
	}
	return subs, nil
}

// DeactivateSubscription soft-disables a subscription. Delivery history is kept.
func (s *pgStore) DeactivateSubscription(ctx context.Context, subscriptionID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&schema.WebhookSubscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": gorm.Expr("COALESCE(deactivated_at, ?)", at),
			"updated_at":     at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate webhook subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// =============================================================================
// Deliveries
// =============================================================================

// CreateDeliveries creates pending deliveries in one transaction
func (s *pgStore) CreateDeliveries(ctx context.Context, inputs []CreateDeliveryInput) ([]uint64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(inputs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, input := range inputs {
			nextRetryAt := input.NextRetryAt
			delivery := &schema.WebhookDelivery{
				SubscriptionID: input.SubscriptionID,
				OrganizationID: input.OrganizationID,
				EventID:        input.EventID,
				EventType:      string(input.EventType),
				Payload:        string(input.Payload),
				Status:         schema.WebhookDeliveryStatusPending,
				Attempts:       0,
				MaxAttempts:    input.MaxAttempts,
				NextRetryAt:    &nextRetryAt,
				CreatedAt:      nextRetryAt,
				UpdatedAt:      nextRetryAt,
			}

			// (subscription_id, event_id) is unique: a re-published event is a no-op
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "event_id"}},
				DoNothing: true,
			}).Create(delivery)
			if result.Error != nil {
				return fmt.Errorf("failed to create webhook delivery: %w", result.Error)
			}
			if result.RowsAffected == 1 {
				ids = append(ids, delivery.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// GetDeliveryByID retrieves a delivery by ID
func (s *pgStore) GetDeliveryByID(ctx context.Context, id uint64) (*schema.WebhookDelivery, error) {
	var delivery schema.WebhookDelivery
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&delivery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook delivery: %w", err)
	}
	return &delivery, nil
}

// ListDeliveries lists deliveries newest first
func (s *pgStore) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]schema.WebhookDelivery, error) {
	query := s.db.WithContext(ctx).Model(&schema.WebhookDelivery{})
	if filter.OrganizationID != "" {
		query = query.Where("organization_id = ?", filter.OrganizationID)
	}
	if filter.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *filter.SubscriptionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var deliveries []schema.WebhookDelivery
	if err := query.Order("id DESC").Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	return deliveries, nil
}

// ListDeliveryAttempts lists the attempt log of a delivery in attempt order
func (s *pgStore) ListDeliveryAttempts(ctx context.Context, deliveryID uint64) ([]schema.WebhookDeliveryAttempt, error) {
	var attempts []schema.WebhookDeliveryAttempt
	err := s.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook delivery attempts: %w", err)
	}
	return attempts, nil
}

// GetDueDeliveryIDs returns deliveries ready for dispatch, oldest due first
func (s *pgStore) GetDueDeliveryIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&schema.WebhookDelivery{}).
		Where("status IN ?", []schema.WebhookDeliveryStatus{
			schema.WebhookDeliveryStatusPending,
			schema.WebhookDeliveryStatusRetrying,
		}).
		Where("next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get due webhook deliveries: %w", err)
	}
	return ids, nil
}

// ClaimDelivery is a single conditional UPDATE; the worker whose statement changes the row owns it
func (s *pgStore) ClaimDelivery(ctx context.Context, id uint64, expectedAttempts int, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.WebhookDelivery{}).
		Where("id = ? AND attempts = ?", id, expectedAttempts).
		Where("status IN ?", []schema.WebhookDeliveryStatus{
			schema.WebhookDeliveryStatusPending,
			schema.WebhookDeliveryStatusRetrying,
		}).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", at).
		Updates(map[string]interface{}{
			"status":     schema.WebhookDeliveryStatusInFlight,
			"claimed_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim webhook delivery: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// CompleteAttempt writes the attempt outcome and appends the attempt log entry
func (s *pgStore) CompleteAttempt(ctx context.Context, input CompleteAttemptInput) error {
	updates := map[string]interface{}{
		"status":          input.Status,
		"attempts":        input.Attempts,
		"next_retry_at":   input.NextRetryAt,
		"claimed_at":      nil,
		"last_attempt_at": input.AttemptedAt,
		"response_body":   domain.SanitizeText(input.ResponseBody, domain.MAX_RESPONSE_BODY_BYTES),
		"error_message":   domain.SanitizeText(input.ErrorMessage, domain.MAX_ERROR_MESSAGE_CHARS),
		"updated_at":      input.AttemptedAt,
	}
	if input.ResponseStatus != nil {
		updates["response_status"] = *input.ResponseStatus
	}
	if input.DeliveredAt != nil {
		updates["delivered_at"] = *input.DeliveredAt
	}
	if input.FailureKind != nil {
		updates["failure_kind"] = *input.FailureKind
	}

	var headers datatypes.JSON
	if len(input.ResponseHeaders) > 0 {
		headers = datatypes.JSON(mustMarshalHeaders(input.ResponseHeaders))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current schema.WebhookDelivery
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "suppressed_at").
			Where("id = ? AND status = ? AND attempts = ?",
				input.DeliveryID, schema.WebhookDeliveryStatusInFlight, input.ClaimedAttempts).
			Take(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrDeliveryClaimLost
			}
			return fmt.Errorf("failed to lock webhook delivery: %w", err)
		}

		// Suppressed while in flight: anything short of delivered is final
		outcome := input.Status
		if current.SuppressedAt != nil && outcome != schema.WebhookDeliveryStatusDelivered {
			outcome = schema.WebhookDeliveryStatusFailed
			updates["status"] = outcome
			updates["next_retry_at"] = nil
			updates["failure_kind"] = schema.WebhookFailureKindSuppressed
		}

		result := tx.Model(&schema.WebhookDelivery{}).
			Where("id = ? AND status = ?", input.DeliveryID, schema.WebhookDeliveryStatusInFlight).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update webhook delivery: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrDeliveryClaimLost
		}

		attemptNumber := input.Attempts
		if attemptNumber == input.ClaimedAttempts {
			// Attempts that do not consume budget are logged against the next slot
			attemptNumber = input.ClaimedAttempts + 1
		}
		attempt := &schema.WebhookDeliveryAttempt{
			DeliveryID:      input.DeliveryID,
			AttemptNumber:   attemptNumber,
			Outcome:         outcome,
			ResponseStatus:  input.ResponseStatus,
			ResponseHeaders: headers,
			ErrorMessage:    domain.SanitizeText(input.ErrorMessage, domain.MAX_ERROR_MESSAGE_CHARS),
			DurationMs:      input.Duration.Milliseconds(),
			CreatedAt:       input.AttemptedAt,
		}
		if err := tx.Create(attempt).Error; err != nil {
			return fmt.Errorf("failed to create webhook delivery attempt: %w", err)
		}
		return nil
	})
}

// ReleaseStaleClaims returns abandoned in_flight deliveries to retrying so they are picked up
// again. Abandoned deliveries that were suppressed while in flight are failed instead.
func (s *pgStore) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time, now time.Time) (int64, error) {
	var released int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&schema.WebhookDelivery{}).
			Where("status = ? AND claimed_at < ? AND suppressed_at IS NOT NULL",
				schema.WebhookDeliveryStatusInFlight, claimedBefore).
			Updates(map[string]interface{}{
				"status":        schema.WebhookDeliveryStatusFailed,
				"failure_kind":  schema.WebhookFailureKindSuppressed,
				"claimed_at":    nil,
				"next_retry_at": nil,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		released += result.RowsAffected

		result = tx.Model(&schema.WebhookDelivery{}).
			Where("status = ? AND claimed_at < ?", schema.WebhookDeliveryStatusInFlight, claimedBefore).
			Updates(map[string]interface{}{
				"status":        schema.WebhookDeliveryStatusRetrying,
				"claimed_at":    nil,
				"next_retry_at": now,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		released += result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release stale webhook delivery claims: %w", err)
	}
	if released > 0 {
		logger.WarnCtx(ctx, "Released stale webhook delivery claims",
			zap.Int64("count", released),
			zap.Time("claimed_before", claimedBefore))
	}
	return released, nil
}

// FailPendingDeliveries fails every queued delivery of a subscription. Deliveries in flight are
// marked suppressed; CompleteAttempt fails them unless that attempt delivers.
func (s *pgStore) FailPendingDeliveries(ctx context.Context, subscriptionID uint64, reason string, at time.Time) (int64, error) {
	var suppressed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&schema.WebhookDelivery{}).
			Where("subscription_id = ?", subscriptionID).
			Where("status IN ?", []schema.WebhookDeliveryStatus{
				schema.WebhookDeliveryStatusPending,
				schema.WebhookDeliveryStatusRetrying,
			}).
			Updates(map[string]interface{}{
				"status":        schema.WebhookDeliveryStatusFailed,
				"failure_kind":  schema.WebhookFailureKindSuppressed,
				"error_message": domain.SanitizeText(reason, domain.MAX_ERROR_MESSAGE_CHARS),
				"next_retry_at": nil,
				"suppressed_at": at,
				"updated_at":    at,
			})
		if result.Error != nil {
			return result.Error
		}
		suppressed += result.RowsAffected

		result = tx.Model(&schema.WebhookDelivery{}).
			Where("subscription_id = ? AND status = ? AND suppressed_at IS NULL",
				subscriptionID, schema.WebhookDeliveryStatusInFlight).
			Updates(map[string]interface{}{
				"suppressed_at": at,
				"updated_at":    at,
			})
		if result.Error != nil {
			return result.Error
		}
		suppressed += result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fail pending webhook deliveries: %w", err)
	}
	return suppressed, nil
}
