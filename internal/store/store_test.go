package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestSubscription creates a subscription input with a unique target URL
func buildTestSubscription(org string, eventType domain.EventType) CreateSubscriptionInput {
	id := uuid.New().String()
	return CreateSubscriptionInput{
		SubscriptionID: id,
		OrganizationID: org,
		EventType:      eventType,
		TargetURL:      fmt.Sprintf("https://hooks.example.com/%s", id),
		Secret:         "test-secret",
		MaxAttempts:    3,
	}
}

// buildTestDelivery creates a pending delivery input for a subscription
func buildTestDelivery(sub *schema.WebhookSubscription, eventID string, due time.Time) CreateDeliveryInput {
	return CreateDeliveryInput{
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		EventID:        eventID,
		EventType:      domain.EventType(sub.EventType),
		Payload:        []byte(fmt.Sprintf(`{"event_id":"%s","event_type":"%s"}`, eventID, sub.EventType)),
		MaxAttempts:    sub.MaxAttempts,
		NextRetryAt:    due,
	}
}

func mustCreateSubscription(t *testing.T, store Store, input CreateSubscriptionInput) *schema.WebhookSubscription {
	sub, err := store.CreateSubscription(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func mustCreateDelivery(t *testing.T, store Store, input CreateDeliveryInput) uint64 {
	ids, err := store.CreateDeliveries(context.Background(), []CreateDeliveryInput{input})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}

func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// =============================================================================
// Test: Subscriptions
// =============================================================================

func testSubscriptions(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get by public and sequence id", func(t *testing.T) {
		input := buildTestSubscription("org-subs", domain.EventTypeBadgeEarned)
		sub := mustCreateSubscription(t, store, input)

		assert.NotZero(t, sub.ID)
		assert.True(t, sub.IsActive)
		assert.Equal(t, 3, sub.MaxAttempts)

		got, err := store.GetSubscriptionByID(ctx, input.SubscriptionID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, input.TargetURL, got.TargetURL)
		assert.Equal(t, "badge.earned", got.EventType)

		byPK, err := store.GetSubscriptionByPK(ctx, sub.ID)
		require.NoError(t, err)
		require.NotNil(t, byPK)
		assert.Equal(t, input.SubscriptionID, byPK.SubscriptionID)
	})

	t.Run("get unknown returns nil", func(t *testing.T) {
		got, err := store.GetSubscriptionByID(ctx, uuid.New().String())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list active filters by organization, event type and active flag", func(t *testing.T) {
		a := mustCreateSubscription(t, store, buildTestSubscription("org-active", domain.EventTypeQuestCompleted))
		b := mustCreateSubscription(t, store, buildTestSubscription("org-active", domain.EventTypeQuestCompleted))
		mustCreateSubscription(t, store, buildTestSubscription("org-active", domain.EventTypeGradeUpdated))
		mustCreateSubscription(t, store, buildTestSubscription("org-other", domain.EventTypeQuestCompleted))

		require.NoError(t, store.DeactivateSubscription(ctx, b.SubscriptionID, testNow()))

		subs, err := store.ListActiveSubscriptions(ctx, "org-active", domain.EventTypeQuestCompleted)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, a.SubscriptionID, subs[0].SubscriptionID)

		all, err := store.ListSubscriptions(ctx, "org-active")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("deactivate is idempotent and keeps first timestamp", func(t *testing.T) {
		sub := mustCreateSubscription(t, store, buildTestSubscription("org-deact", domain.EventTypeTaskSubmitted))
		first := testNow()

		require.NoError(t, store.DeactivateSubscription(ctx, sub.SubscriptionID, first))
		require.NoError(t, store.DeactivateSubscription(ctx, sub.SubscriptionID, first.Add(time.Hour)))

		got, err := store.GetSubscriptionByID(ctx, sub.SubscriptionID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.DeactivatedAt)
		assert.WithinDuration(t, first, *got.DeactivatedAt, time.Millisecond)
	})

	t.Run("deactivate unknown subscription", func(t *testing.T) {
		err := store.DeactivateSubscription(ctx, uuid.New().String(), testNow())
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	})
}

// testSubscriptionConflict runs alone: the unique violation aborts the surrounding transaction
func testSubscriptionConflict(t *testing.T, store Store) {
	input := buildTestSubscription("org-conflict", domain.EventTypeBadgeEarned)
	mustCreateSubscription(t, store, input)

	dup := input
	dup.SubscriptionID = uuid.New().String()
	_, err := store.CreateSubscription(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, domain.IsConflictError(err))
}

// =============================================================================
// Test: Deliveries
// =============================================================================

func testDeliveries(t *testing.T, store Store) {
	ctx := context.Background()
	sub := mustCreateSubscription(t, store, buildTestSubscription("org-deliveries", domain.EventTypeBadgeEarned))

	t.Run("create delivery starts pending with zero attempts", func(t *testing.T) {
		due := testNow()
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-create", due))

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, schema.WebhookDeliveryStatusPending, d.Status)
		assert.Equal(t, 0, d.Attempts)
		assert.Equal(t, 3, d.MaxAttempts)
		assert.Equal(t, sub.OrganizationID, d.OrganizationID)
		assert.Equal(t, `{"event_id":"evt-create","event_type":"badge.earned"}`, d.Payload)
		require.NotNil(t, d.NextRetryAt)
		assert.WithinDuration(t, due, *d.NextRetryAt, time.Millisecond)
	})

	t.Run("same event twice for one subscription is skipped", func(t *testing.T) {
		input := buildTestDelivery(sub, "evt-dup", testNow())
		mustCreateDelivery(t, store, input)

		ids, err := store.CreateDeliveries(ctx, []CreateDeliveryInput{input})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("get unknown delivery returns nil", func(t *testing.T) {
		d, err := store.GetDeliveryByID(ctx, 999999999)
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("due deliveries exclude future and non-queued rows", func(t *testing.T) {
		now := testNow()
		dueID := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-due", now.Add(-time.Minute)))
		futureID := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-future", now.Add(time.Hour)))
		claimedID := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-claimed", now.Add(-time.Minute)))

		ok, err := store.ClaimDelivery(ctx, claimedID, 0, now)
		require.NoError(t, err)
		require.True(t, ok)

		ids, err := store.GetDueDeliveryIDs(ctx, now, 1000)
		require.NoError(t, err)
		assert.Contains(t, ids, dueID)
		assert.NotContains(t, ids, futureID)
		assert.NotContains(t, ids, claimedID)
	})

	t.Run("list deliveries with filters", func(t *testing.T) {
		other := mustCreateSubscription(t, store, buildTestSubscription("org-deliveries", domain.EventTypeBadgeEarned))
		mustCreateDelivery(t, store, buildTestDelivery(other, "evt-list-1", testNow()))
		mustCreateDelivery(t, store, buildTestDelivery(other, "evt-list-2", testNow()))

		deliveries, err := store.ListDeliveries(ctx, DeliveryFilter{SubscriptionID: &other.ID, Limit: 10})
		require.NoError(t, err)
		require.Len(t, deliveries, 2)
		assert.Equal(t, "evt-list-2", deliveries[0].EventID, "newest first")

		pending := schema.WebhookDeliveryStatusPending
		deliveries, err = store.ListDeliveries(ctx, DeliveryFilter{
			OrganizationID: "org-deliveries",
			Status:         &pending,
			Limit:          1,
			Offset:         1,
		})
		require.NoError(t, err)
		assert.Len(t, deliveries, 1)
	})
}

// =============================================================================
// Test: Claim and attempt outcomes
// =============================================================================

func testClaimAndComplete(t *testing.T, store Store) {
	ctx := context.Background()
	sub := mustCreateSubscription(t, store, buildTestSubscription("org-claim", domain.EventTypeGradeUpdated))

	t.Run("claim requires matching attempt counter", func(t *testing.T) {
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-claim-mismatch", testNow()))

		ok, err := store.ClaimDelivery(ctx, id, 1, testNow())
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.ClaimDelivery(ctx, id, 0, testNow())
		require.NoError(t, err)
		assert.True(t, ok)

		// Second claim on an in_flight row loses
		ok, err = store.ClaimDelivery(ctx, id, 0, testNow())
		require.NoError(t, err)
		assert.False(t, ok)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusInFlight, d.Status)
		assert.NotNil(t, d.ClaimedAt)
	})

	t.Run("retrying outcome then delivered", func(t *testing.T) {
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-retry-deliver", testNow()))
		now := testNow()

		ok, err := store.ClaimDelivery(ctx, id, 0, now)
		require.NoError(t, err)
		require.True(t, ok)

		status := 500
		next := now.Add(time.Minute)
		err = store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusRetrying,
			Attempts:        1,
			NextRetryAt:     &next,
			ResponseStatus:  &status,
			ResponseBody:    "boom",
			ResponseHeaders: map[string]string{"Content-Type": "text/plain"},
			ErrorMessage:    "HTTP 500",
			AttemptedAt:     now,
			Duration:        120 * time.Millisecond,
		})
		require.NoError(t, err)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusRetrying, d.Status)
		assert.Equal(t, 1, d.Attempts)
		assert.Nil(t, d.ClaimedAt)
		require.NotNil(t, d.ResponseStatus)
		assert.Equal(t, 500, *d.ResponseStatus)
		assert.WithinDuration(t, next, *d.NextRetryAt, time.Millisecond)

		// Claim with stale counter fails, with the current counter succeeds once due
		ok, err = store.ClaimDelivery(ctx, id, 0, next)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = store.ClaimDelivery(ctx, id, 1, next)
		require.NoError(t, err)
		require.True(t, ok)

		okStatus := 200
		deliveredAt := now.Add(2 * time.Minute)
		err = store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 1,
			Status:          schema.WebhookDeliveryStatusDelivered,
			Attempts:        2,
			DeliveredAt:     &deliveredAt,
			ResponseStatus:  &okStatus,
			ResponseBody:    "ok",
			AttemptedAt:     deliveredAt,
		})
		require.NoError(t, err)

		d, err = store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusDelivered, d.Status)
		assert.Equal(t, 2, d.Attempts)
		assert.Nil(t, d.NextRetryAt)
		require.NotNil(t, d.DeliveredAt)

		attempts, err := store.ListDeliveryAttempts(ctx, id)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, 1, attempts[0].AttemptNumber)
		assert.Equal(t, schema.WebhookDeliveryStatusRetrying, attempts[0].Outcome)
		assert.Equal(t, int64(120), attempts[0].DurationMs)
		assert.JSONEq(t, `{"Content-Type":"text/plain"}`, string(attempts[0].ResponseHeaders))
		assert.Equal(t, 2, attempts[1].AttemptNumber)
		assert.Equal(t, schema.WebhookDeliveryStatusDelivered, attempts[1].Outcome)
	})

	t.Run("claim refuses rows not yet due", func(t *testing.T) {
		now := testNow()
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-not-due", now.Add(2*time.Minute)))

		ok, err := store.ClaimDelivery(ctx, id, 0, now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.ClaimDelivery(ctx, id, 0, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("worker with a stale due list cannot claim a rescheduled row", func(t *testing.T) {
		now := testNow()
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-rescheduled", now))

		// Both workers saw the row as due; the first claims it and schedules a retry
		ids, err := store.GetDueDeliveryIDs(ctx, now, 1000)
		require.NoError(t, err)
		require.Contains(t, ids, id)

		ok, err := store.ClaimDelivery(ctx, id, 0, now)
		require.NoError(t, err)
		require.True(t, ok)
		next := now.Add(time.Minute)
		require.NoError(t, store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusRetrying,
			Attempts:        1,
			NextRetryAt:     &next,
			ErrorMessage:    "HTTP 503",
			AttemptedAt:     now,
		}))

		// The second worker reloads the row and tries with the fresh counter
		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		ok, err = store.ClaimDelivery(ctx, id, d.Attempts, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok)

		d, err = store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusRetrying, d.Status)
		assert.Equal(t, 1, d.Attempts)
	})

	t.Run("response text is stored as valid utf-8", func(t *testing.T) {
		now := testNow()
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-utf8", now))
		ok, err := store.ClaimDelivery(ctx, id, 0, now)
		require.NoError(t, err)
		require.True(t, ok)

		status := 200
		err = store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusDelivered,
			Attempts:        0,
			DeliveredAt:     &now,
			ResponseStatus:  &status,
			ResponseBody:    "a" + strings.Repeat("é", 3000) + "\x00",
			ResponseHeaders: map[string]string{"X-Request-Id": "req\x00\xff1"},
			ErrorMessage:    "bad \xff\xfe bytes",
			AttemptedAt:     now,
		})
		require.NoError(t, err)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusDelivered, d.Status)
		assert.True(t, utf8.ValidString(d.ResponseBody))
		assert.LessOrEqual(t, len(d.ResponseBody), domain.MAX_RESPONSE_BODY_BYTES)
		assert.True(t, strings.HasPrefix(d.ResponseBody, "aé"))
		assert.Equal(t, "bad  bytes", d.ErrorMessage)

		attempts, err := store.ListDeliveryAttempts(ctx, id)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.JSONEq(t, `{"X-Request-Id":"req1"}`, string(attempts[0].ResponseHeaders))
	})

	t.Run("complete without claim reports claim lost", func(t *testing.T) {
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-unclaimed", testNow()))
		err := store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusDelivered,
			Attempts:        1,
			AttemptedAt:     testNow(),
		})
		assert.ErrorIs(t, err, domain.ErrDeliveryClaimLost)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusPending, d.Status)
	})

	t.Run("configuration failure keeps attempt counter", func(t *testing.T) {
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-config", testNow()))
		ok, err := store.ClaimDelivery(ctx, id, 0, testNow())
		require.NoError(t, err)
		require.True(t, ok)

		kind := schema.WebhookFailureKindConfiguration
		err = store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusFailed,
			Attempts:        0,
			FailureKind:     &kind,
			ErrorMessage:    "secret is empty",
			AttemptedAt:     testNow(),
		})
		require.NoError(t, err)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusFailed, d.Status)
		assert.Equal(t, 0, d.Attempts)
		require.NotNil(t, d.FailureKind)
		assert.Equal(t, schema.WebhookFailureKindConfiguration, *d.FailureKind)

		attempts, err := store.ListDeliveryAttempts(ctx, id)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, 1, attempts[0].AttemptNumber)
	})

	t.Run("stale claims are released to retrying", func(t *testing.T) {
		claimedAt := testNow().Add(-10 * time.Minute)
		id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-stale", claimedAt))
		ok, err := store.ClaimDelivery(ctx, id, 0, claimedAt)
		require.NoError(t, err)
		require.True(t, ok)

		now := testNow()
		released, err := store.ReleaseStaleClaims(ctx, now.Add(-5*time.Minute), now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, released, int64(1))

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusRetrying, d.Status)
		assert.Equal(t, 0, d.Attempts)
		assert.Nil(t, d.ClaimedAt)
	})

	t.Run("fail pending deliveries of a subscription", func(t *testing.T) {
		target := mustCreateSubscription(t, store, buildTestSubscription("org-claim", domain.EventTypeGradeUpdated))
		pendingID := mustCreateDelivery(t, store, buildTestDelivery(target, "evt-suppress-1", testNow()))
		inFlightID := mustCreateDelivery(t, store, buildTestDelivery(target, "evt-suppress-2", testNow()))
		ok, err := store.ClaimDelivery(ctx, inFlightID, 0, testNow())
		require.NoError(t, err)
		require.True(t, ok)

		n, err := store.FailPendingDeliveries(ctx, target.ID, "suppressed by operator", testNow())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		d, err := store.GetDeliveryByID(ctx, pendingID)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusFailed, d.Status)
		require.NotNil(t, d.FailureKind)
		assert.Equal(t, schema.WebhookFailureKindSuppressed, *d.FailureKind)
		assert.NotNil(t, d.SuppressedAt)

		// The attempt in flight keeps its claim and cannot schedule another one
		d, err = store.GetDeliveryByID(ctx, inFlightID)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusInFlight, d.Status)
		assert.NotNil(t, d.SuppressedAt)

		next := testNow().Add(time.Minute)
		err = store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      inFlightID,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusRetrying,
			Attempts:        1,
			NextRetryAt:     &next,
			ErrorMessage:    "HTTP 500",
			AttemptedAt:     testNow(),
		})
		require.NoError(t, err)

		d, err = store.GetDeliveryByID(ctx, inFlightID)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusFailed, d.Status)
		assert.Nil(t, d.NextRetryAt)
		require.NotNil(t, d.FailureKind)
		assert.Equal(t, schema.WebhookFailureKindSuppressed, *d.FailureKind)

		attempts, err := store.ListDeliveryAttempts(ctx, inFlightID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, schema.WebhookDeliveryStatusFailed, attempts[0].Outcome)
	})

	t.Run("suppressed delivery in flight may still be delivered", func(t *testing.T) {
		target := mustCreateSubscription(t, store, buildTestSubscription("org-claim", domain.EventTypeTaskCompleted))
		id := mustCreateDelivery(t, store, buildTestDelivery(target, "evt-suppress-ok", testNow()))
		ok, err := store.ClaimDelivery(ctx, id, 0, testNow())
		require.NoError(t, err)
		require.True(t, ok)

		_, err = store.FailPendingDeliveries(ctx, target.ID, "suppressed by operator", testNow())
		require.NoError(t, err)

		now := testNow()
		require.NoError(t, store.CompleteAttempt(ctx, CompleteAttemptInput{
			DeliveryID:      id,
			ClaimedAttempts: 0,
			Status:          schema.WebhookDeliveryStatusDelivered,
			Attempts:        0,
			DeliveredAt:     &now,
			AttemptedAt:     now,
		}))

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusDelivered, d.Status)
	})

	t.Run("stale suppressed claims are failed, not retried", func(t *testing.T) {
		target := mustCreateSubscription(t, store, buildTestSubscription("org-claim", domain.EventTypeQuestStarted))
		claimedAt := testNow().Add(-10 * time.Minute)
		id := mustCreateDelivery(t, store, buildTestDelivery(target, "evt-suppress-stale", claimedAt))
		ok, err := store.ClaimDelivery(ctx, id, 0, claimedAt)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = store.FailPendingDeliveries(ctx, target.ID, "suppressed by operator", testNow())
		require.NoError(t, err)

		now := testNow()
		_, err = store.ReleaseStaleClaims(ctx, now.Add(-5*time.Minute), now)
		require.NoError(t, err)

		d, err := store.GetDeliveryByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schema.WebhookDeliveryStatusFailed, d.Status)
		assert.Nil(t, d.NextRetryAt)
		assert.Nil(t, d.ClaimedAt)
	})
}

// testTerminalStatusIsFinal runs alone: the guard trigger aborts the surrounding transaction
func testTerminalStatusIsFinal(t *testing.T, store Store) {
	ctx := context.Background()
	sub := mustCreateSubscription(t, store, buildTestSubscription("org-terminal", domain.EventTypeBadgeEarned))
	id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-terminal", testNow()))

	n, err := store.FailPendingDeliveries(ctx, sub.ID, "stop", testNow())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	pg, ok := store.(*pgStore)
	require.True(t, ok)
	err = pg.db.WithContext(ctx).
		Model(&schema.WebhookDelivery{}).
		Where("id = ?", id).
		Update("status", schema.WebhookDeliveryStatusRetrying).Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is terminal")
}

// testPayloadIsImmutable runs alone: the guard trigger aborts the surrounding transaction
func testPayloadIsImmutable(t *testing.T, store Store) {
	ctx := context.Background()
	sub := mustCreateSubscription(t, store, buildTestSubscription("org-payload", domain.EventTypeBadgeEarned))
	id := mustCreateDelivery(t, store, buildTestDelivery(sub, "evt-payload", testNow()))

	pg, ok := store.(*pgStore)
	require.True(t, ok)
	err := pg.db.WithContext(ctx).
		Model(&schema.WebhookDelivery{}).
		Where("id = ?", id).
		Update("payload", `{"tampered":true}`).Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

// RunStoreTests runs all store tests against the provided store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Subscriptions", testSubscriptions},
		{"SubscriptionConflict", testSubscriptionConflict},
		{"Deliveries", testDeliveries},
		{"ClaimAndComplete", testClaimAndComplete},
		{"TerminalStatusIsFinal", testTerminalStatusIsFinal},
		{"PayloadIsImmutable", testPayloadIsImmutable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
