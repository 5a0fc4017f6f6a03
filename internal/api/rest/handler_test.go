package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-webhook-engine/internal/api/middleware"
	"github.com/feral-file/ff-webhook-engine/internal/api/rest"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/mocks"
	"github.com/feral-file/ff-webhook-engine/internal/registry"
	"github.com/feral-file/ff-webhook-engine/internal/store"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

const (
	testAPIKey = "test-api-key"
	// orgAPIKey is limited to org-1
	orgAPIKey = "org-api-key"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testHandlerMocks contains all the mocks needed for testing the REST handler
type testHandlerMocks struct {
	ctrl       *gomock.Controller
	registry   *mocks.MockRegistry
	dispatcher *mocks.MockDispatcher
	store      *mocks.MockStore
	clock      *mocks.MockClock
	router     *gin.Engine
}

func setupTestHandler(t *testing.T) *testHandlerMocks {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	tm := &testHandlerMocks{
		ctrl:       ctrl,
		registry:   mocks.NewMockRegistry(ctrl),
		dispatcher: mocks.NewMockDispatcher(ctrl),
		store:      mocks.NewMockStore(ctrl),
		clock:      mocks.NewMockClock(ctrl),
	}
	tm.clock.EXPECT().Now().Return(testNow).AnyTimes()

	tm.router = gin.New()
	h := rest.NewHandler(tm.registry, tm.dispatcher, tm.store, tm.clock)
	rest.SetupRoutes(tm.router, h, middleware.AuthConfig{APIKeys: []string{testAPIKey, "org-1:" + orgAPIKey}})

	return tm
}

func (tm *testHandlerMocks) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	return tm.doWithKey(t, testAPIKey, method, path, body)
}

func (tm *testHandlerMocks) doWithKey(t *testing.T, apiKey, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "ApiKey "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func testSubscription() *schema.WebhookSubscription {
	return &schema.WebhookSubscription{
		ID:             7,
		SubscriptionID: "0d7b3a6e-2f4c-4a51-9a3e-5b8f7c1d2e3f",
		OrganizationID: "org-1",
		EventType:      string(domain.EventTypeBadgeEarned),
		TargetURL:      "https://example.com/hook",
		Secret:         "whsec_abc",
		IsActive:       true,
		MaxAttempts:    5,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
}

func TestHealthCheck(t *testing.T) {
	tm := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	tm := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions?organization_id=org-1", nil)
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Error.Code)
}

func TestRegisterSubscription(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().
		Register(gomock.Any(), registry.RegisterInput{
			OrganizationID: "org-1",
			EventType:      domain.EventTypeBadgeEarned,
			TargetURL:      "https://example.com/hook",
			MaxAttempts:    3,
		}).
		Return(testSubscription(), nil)

	w := tm.do(t, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
		"organization_id": "org-1",
		"event_type":      "badge.earned",
		"target_url":      "https://example.com/hook",
		"max_attempts":    3,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "whsec_abc", body["secret"])
	assert.Equal(t, "0d7b3a6e-2f4c-4a51-9a3e-5b8f7c1d2e3f", body["subscription_id"])
	assert.Equal(t, true, body["is_active"])
}

func TestRegisterSubscription_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		setup      func(r *mocks.MockRegistry)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			body:       `{"organization_id":`,
			setup:      func(r *mocks.MockRegistry) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name:       "missing required field",
			body:       map[string]string{"organization_id": "org-1", "event_type": "badge.earned"},
			setup:      func(r *mocks.MockRegistry) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name: "validation error from registry",
			body: map[string]string{"organization_id": "org-1", "event_type": "course.deleted", "target_url": "https://example.com"},
			setup: func(r *mocks.MockRegistry) {
				r.EXPECT().Register(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewValidationError("event_type", "unsupported event type: course.deleted"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name: "duplicate subscription",
			body: map[string]string{"organization_id": "org-1", "event_type": "badge.earned", "target_url": "https://example.com"},
			setup: func(r *mocks.MockRegistry) {
				r.EXPECT().Register(gomock.Any(), gomock.Any()).
					Return(nil, &domain.ConflictError{OrganizationID: "org-1", EventType: domain.EventTypeBadgeEarned, TargetURL: "https://example.com"})
			},
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name: "store failure",
			body: map[string]string{"organization_id": "org-1", "event_type": "badge.earned", "target_url": "https://example.com"},
			setup: func(r *mocks.MockRegistry) {
				r.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestHandler(t)
			tt.setup(tm.registry)

			w := tm.do(t, http.MethodPost, "/api/v1/subscriptions", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
		})
	}
}

func TestListSubscriptions(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().List(gomock.Any(), "org-1").Return([]schema.WebhookSubscription{*testSubscription()}, nil)

	w := tm.do(t, http.MethodGet, "/api/v1/subscriptions?organization_id=org-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "whsec_abc")
	assert.Contains(t, w.Body.String(), `"event_type":"badge.earned"`)
}

func TestListSubscriptions_MissingOrganization(t *testing.T) {
	tm := setupTestHandler(t)

	w := tm.do(t, http.MethodGet, "/api/v1/subscriptions", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Error.Code)
}

func TestGetSubscription(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().Get(gomock.Any(), "missing").Return(nil, domain.ErrSubscriptionNotFound)
	w := tm.do(t, http.MethodGet, "/api/v1/subscriptions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	sub := testSubscription()
	tm.registry.EXPECT().Get(gomock.Any(), sub.SubscriptionID).Return(sub, nil)
	w = tm.do(t, http.MethodGet, "/api/v1/subscriptions/"+sub.SubscriptionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "whsec_abc")
}

func TestDeactivateSubscription(t *testing.T) {
	tm := setupTestHandler(t)

	active := testSubscription()
	sub := testSubscription()
	sub.IsActive = false
	sub.DeactivatedAt = &testNow

	gomock.InOrder(
		tm.registry.EXPECT().Get(gomock.Any(), sub.SubscriptionID).Return(active, nil),
		tm.registry.EXPECT().Deactivate(gomock.Any(), sub.SubscriptionID).Return(nil),
		tm.registry.EXPECT().Get(gomock.Any(), sub.SubscriptionID).Return(sub, nil),
	)

	w := tm.do(t, http.MethodPost, "/api/v1/subscriptions/"+sub.SubscriptionID+"/deactivate", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_active":false`)
}

func TestDeactivateSubscription_NotFound(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().Get(gomock.Any(), "missing").Return(nil, domain.ErrSubscriptionNotFound)

	w := tm.do(t, http.MethodPost, "/api/v1/subscriptions/missing/deactivate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuppressPendingDeliveries(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().Get(gomock.Any(), "sub-1").Return(testSubscription(), nil)
	tm.registry.EXPECT().SuppressPending(gomock.Any(), "sub-1", "endpoint retired").Return(int64(4), nil)

	w := tm.do(t, http.MethodPost, "/api/v1/subscriptions/sub-1/suppress", map[string]string{"reason": "endpoint retired"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscription_id":"sub-1","suppressed":4}`, w.Body.String())
}

func TestSuppressPendingDeliveries_NoBody(t *testing.T) {
	tm := setupTestHandler(t)

	tm.registry.EXPECT().Get(gomock.Any(), "sub-1").Return(testSubscription(), nil)
	tm.registry.EXPECT().SuppressPending(gomock.Any(), "sub-1", "").Return(int64(0), nil)

	w := tm.do(t, http.MethodPost, "/api/v1/subscriptions/sub-1/suppress", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDeliveries(t *testing.T) {
	tm := setupTestHandler(t)

	sub := testSubscription()
	status := schema.WebhookDeliveryStatusRetrying
	tm.registry.EXPECT().Get(gomock.Any(), sub.SubscriptionID).Return(sub, nil)
	tm.store.EXPECT().
		ListDeliveries(gomock.Any(), store.DeliveryFilter{
			SubscriptionID: &sub.ID,
			Status:         &status,
			Limit:          100,
			Offset:         10,
		}).
		Return([]schema.WebhookDelivery{{
			ID:          42,
			EventID:     "evt-1",
			EventType:   "badge.earned",
			Payload:     `{"data":null}`,
			Status:      schema.WebhookDeliveryStatusRetrying,
			Attempts:    2,
			MaxAttempts: 5,
		}}, nil)

	w := tm.do(t, http.MethodGet, "/api/v1/deliveries?subscription_id="+sub.SubscriptionID+"&status=retrying&limit=500&offset=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []struct {
			ID       uint64          `json:"id"`
			Status   string          `json:"status"`
			Attempts int             `json:"attempts"`
			Payload  json.RawMessage `json:"payload"`
		} `json:"items"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, uint64(42), body.Items[0].ID)
	assert.Equal(t, "retrying", body.Items[0].Status)
	assert.JSONEq(t, `{"data":null}`, string(body.Items[0].Payload))
	assert.Equal(t, 100, body.Limit)
}

func TestListDeliveries_InvalidQuery(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"no scope", "/api/v1/deliveries"},
		{"unknown status", "/api/v1/deliveries?organization_id=org-1&status=lost"},
		{"negative offset", "/api/v1/deliveries?organization_id=org-1&offset=-1"},
		{"non numeric limit", "/api/v1/deliveries?organization_id=org-1&limit=many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestHandler(t)

			w := tm.do(t, http.MethodGet, tt.path, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_failed", decodeError(t, w).Error.Code)
		})
	}
}

func TestGetDelivery(t *testing.T) {
	tm := setupTestHandler(t)

	code := 500
	tm.store.EXPECT().GetDeliveryByID(gomock.Any(), uint64(42)).Return(&schema.WebhookDelivery{
		ID:       42,
		Payload:  `{"event_id":"evt-1"}`,
		Status:   schema.WebhookDeliveryStatusRetrying,
		Attempts: 1,
	}, nil)
	tm.store.EXPECT().ListDeliveryAttempts(gomock.Any(), uint64(42)).Return([]schema.WebhookDeliveryAttempt{{
		DeliveryID:     42,
		AttemptNumber:  1,
		Outcome:        schema.WebhookDeliveryStatusRetrying,
		ResponseStatus: &code,
		DurationMs:     12,
	}}, nil)

	w := tm.do(t, http.MethodGet, "/api/v1/deliveries/42", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AttemptLog []struct {
			AttemptNumber  int `json:"attempt_number"`
			ResponseStatus int `json:"response_status"`
		} `json:"attempt_log"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.AttemptLog, 1)
	assert.Equal(t, 500, body.AttemptLog[0].ResponseStatus)
}

func TestGetDelivery_Errors(t *testing.T) {
	tm := setupTestHandler(t)

	w := tm.do(t, http.MethodGet, "/api/v1/deliveries/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tm.store.EXPECT().GetDeliveryByID(gomock.Any(), uint64(9)).Return(nil, nil)
	w = tm.do(t, http.MethodGet, "/api/v1/deliveries/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishEvent(t *testing.T) {
	tm := setupTestHandler(t)

	var enqueued domain.Event
	tm.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event domain.Event) ([]uint64, error) {
			enqueued = event
			return []uint64{1, 2}, nil
		})

	w := tm.do(t, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"event_type":      "quest.completed",
		"organization_id": "org-1",
		"data":            map[string]string{"quest_id": "q-1"},
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	var body struct {
		EventID     string   `json:"event_id"`
		DeliveryIDs []uint64 `json:"delivery_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.EventID, 26)
	assert.Equal(t, body.EventID, enqueued.ID)
	assert.Equal(t, []uint64{1, 2}, body.DeliveryIDs)
	assert.Equal(t, domain.EventTypeQuestCompleted, enqueued.Type)
	assert.JSONEq(t, `{"quest_id":"q-1"}`, string(enqueued.Data))
}

func TestPublishEvent_KeepsCallerEventID(t *testing.T) {
	tm := setupTestHandler(t)

	tm.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event domain.Event) ([]uint64, error) {
			assert.Equal(t, "evt-from-caller", event.ID)
			return []uint64{}, nil
		})

	w := tm.do(t, http.MethodPost, "/api/v1/events", map[string]string{
		"event_id":        "evt-from-caller",
		"event_type":      "user.registered",
		"organization_id": "org-1",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"event_id":"evt-from-caller","delivery_ids":[]}`, w.Body.String())
}

func TestPublishEvent_Errors(t *testing.T) {
	tm := setupTestHandler(t)

	tm.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		Return(nil, domain.NewValidationError("event_type", "unsupported event type: course.deleted"))
	w := tm.do(t, http.MethodPost, "/api/v1/events", map[string]string{
		"event_type":      "course.deleted",
		"organization_id": "org-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tm.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	w = tm.do(t, http.MethodPost, "/api/v1/events", map[string]string{
		"event_type":      "badge.earned",
		"organization_id": "org-1",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOrganizationScopedKey(t *testing.T) {
	otherOrg := testSubscription()
	otherOrg.OrganizationID = "org-2"

	t.Run("list defaults to the key's organization", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.registry.EXPECT().List(gomock.Any(), "org-1").Return([]schema.WebhookSubscription{*testSubscription()}, nil)

		w := tm.doWithKey(t, orgAPIKey, http.MethodGet, "/api/v1/subscriptions", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("list of another organization is forbidden", func(t *testing.T) {
		tm := setupTestHandler(t)

		w := tm.doWithKey(t, orgAPIKey, http.MethodGet, "/api/v1/subscriptions?organization_id=org-2", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "forbidden", decodeError(t, w).Error.Code)
	})

	t.Run("register for another organization is forbidden", func(t *testing.T) {
		tm := setupTestHandler(t)

		w := tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/subscriptions", map[string]string{
			"organization_id": "org-2",
			"event_type":      "badge.earned",
			"target_url":      "https://example.com/hook",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("register without organization uses the key's", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.registry.EXPECT().
			Register(gomock.Any(), registry.RegisterInput{
				OrganizationID: "org-1",
				EventType:      domain.EventTypeBadgeEarned,
				TargetURL:      "https://example.com/hook",
			}).
			Return(testSubscription(), nil)

		w := tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/subscriptions", map[string]string{
			"event_type": "badge.earned",
			"target_url": "https://example.com/hook",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("subscription of another organization is not found", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.registry.EXPECT().Get(gomock.Any(), otherOrg.SubscriptionID).Return(otherOrg, nil).Times(3)

		w := tm.doWithKey(t, orgAPIKey, http.MethodGet, "/api/v1/subscriptions/"+otherOrg.SubscriptionID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		// Neither deactivation nor suppression reaches the registry
		w = tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/subscriptions/"+otherOrg.SubscriptionID+"/deactivate", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/subscriptions/"+otherOrg.SubscriptionID+"/suppress", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("deliveries default to the key's organization", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.store.EXPECT().
			ListDeliveries(gomock.Any(), store.DeliveryFilter{OrganizationID: "org-1", Limit: 20}).
			Return([]schema.WebhookDelivery{}, nil)

		w := tm.doWithKey(t, orgAPIKey, http.MethodGet, "/api/v1/deliveries", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("delivery of another organization is not found", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.store.EXPECT().GetDeliveryByID(gomock.Any(), uint64(42)).Return(&schema.WebhookDelivery{
			ID:             42,
			OrganizationID: "org-2",
			Payload:        `{}`,
		}, nil)

		w := tm.doWithKey(t, orgAPIKey, http.MethodGet, "/api/v1/deliveries/42", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("events are published for the key's organization", func(t *testing.T) {
		tm := setupTestHandler(t)
		tm.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, event domain.Event) ([]uint64, error) {
				assert.Equal(t, "org-1", event.OrganizationID)
				return []uint64{5}, nil
			})

		w := tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/events", map[string]string{
			"event_type": "badge.earned",
		})
		assert.Equal(t, http.StatusAccepted, w.Code)

		w = tm.doWithKey(t, orgAPIKey, http.MethodPost, "/api/v1/events", map[string]string{
			"event_type":      "badge.earned",
			"organization_id": "org-2",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
