package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/api/middleware"
	"github.com/feral-file/ff-webhook-engine/internal/api/rest/dto"
	"github.com/feral-file/ff-webhook-engine/internal/dispatcher"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/registry"
	"github.com/feral-file/ff-webhook-engine/internal/store"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
type Handler interface {
	// RegisterSubscription registers a webhook subscription
	// POST /api/v1/subscriptions
	RegisterSubscription(c *gin.Context)

	// ListSubscriptions lists the subscriptions of an organization
	// GET /api/v1/subscriptions?organization_id=<id>
	ListSubscriptions(c *gin.Context)

	// GetSubscription retrieves a subscription by its public ID
	// GET /api/v1/subscriptions/:id
	GetSubscription(c *gin.Context)

	// DeactivateSubscription stops new events from fanning out to a subscription
	// POST /api/v1/subscriptions/:id/deactivate
	DeactivateSubscription(c *gin.Context)

	// SuppressPendingDeliveries fails every queued delivery of a subscription
	// POST /api/v1/subscriptions/:id/suppress
	SuppressPendingDeliveries(c *gin.Context)

	// ListDeliveries lists delivery history
	// GET /api/v1/deliveries?organization_id=<id>&subscription_id=<id>&status=<status>&limit=<limit>&offset=<offset>
	ListDeliveries(c *gin.Context)

	// GetDelivery retrieves a delivery with its attempt log
	// GET /api/v1/deliveries/:id
	GetDelivery(c *gin.Context)

	// PublishEvent enqueues deliveries for a domain event
	// POST /api/v1/events
	PublishEvent(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	registry   registry.Registry
	dispatcher dispatcher.Dispatcher
	store      store.Store
	clock      adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(reg registry.Registry, d dispatcher.Dispatcher, st store.Store, clock adapter.Clock) Handler {
	return &handler{
		registry:   reg,
		dispatcher: d,
		store:      st,
		clock:      clock,
	}
}

// RegisterSubscription registers a webhook subscription. The secret is returned only here.
func (h *handler) RegisterSubscription(c *gin.Context) {
	var req dto.RegisterSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	organizationID, ok := resolveOrganization(c, req.OrganizationID)
	if !ok {
		return
	}

	sub, err := h.registry.Register(c.Request.Context(), registry.RegisterInput{
		OrganizationID: organizationID,
		EventType:      domain.EventType(req.EventType),
		TargetURL:      req.TargetURL,
		Secret:         req.Secret,
		Description:    req.Description,
		MaxAttempts:    req.MaxAttempts,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to register subscription")
		return
	}

	response := dto.MapSubscriptionToDTO(sub)
	response.Secret = sub.Secret
	c.JSON(http.StatusCreated, response)
}

// ListSubscriptions lists the subscriptions of an organization
func (h *handler) ListSubscriptions(c *gin.Context) {
	organizationID, ok := resolveOrganization(c, c.Query("organization_id"))
	if !ok {
		return
	}
	if organizationID == "" {
		respondBadRequest(c, "organization_id is required")
		return
	}

	subs, err := h.registry.List(c.Request.Context(), organizationID)
	if err != nil {
		respondDomainError(c, err, "Failed to list subscriptions")
		return
	}

	c.JSON(http.StatusOK, dto.SubscriptionListResponse{Items: dto.MapSubscriptionsToDTO(subs)})
}

// GetSubscription retrieves a subscription by its public ID
func (h *handler) GetSubscription(c *gin.Context) {
	sub, ok := h.accessibleSubscription(c, c.Param("id"))
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.MapSubscriptionToDTO(sub))
}

// DeactivateSubscription stops new events from fanning out to a subscription
func (h *handler) DeactivateSubscription(c *gin.Context) {
	subscriptionID := c.Param("id")
	if _, ok := h.accessibleSubscription(c, subscriptionID); !ok {
		return
	}

	if err := h.registry.Deactivate(c.Request.Context(), subscriptionID); err != nil {
		respondDomainError(c, err, "Failed to deactivate subscription")
		return
	}

	sub, err := h.registry.Get(c.Request.Context(), subscriptionID)
	if err != nil {
		respondDomainError(c, err, "Failed to get subscription")
		return
	}

	c.JSON(http.StatusOK, dto.MapSubscriptionToDTO(sub))
}

// SuppressPendingDeliveries fails every queued delivery of a subscription
func (h *handler) SuppressPendingDeliveries(c *gin.Context) {
	var req dto.SuppressDeliveriesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	subscriptionID := c.Param("id")
	if _, ok := h.accessibleSubscription(c, subscriptionID); !ok {
		return
	}

	count, err := h.registry.SuppressPending(c.Request.Context(), subscriptionID, req.Reason)
	if err != nil {
		respondDomainError(c, err, "Failed to suppress deliveries")
		return
	}

	c.JSON(http.StatusOK, dto.SuppressDeliveriesResponse{
		SubscriptionID: subscriptionID,
		Suppressed:     count,
	})
}

// ListDeliveries lists delivery history
func (h *handler) ListDeliveries(c *gin.Context) {
	params, err := ParseListDeliveriesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	organizationID, ok := resolveOrganization(c, params.OrganizationID)
	if !ok {
		return
	}
	params.OrganizationID = organizationID
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	filter := store.DeliveryFilter{
		OrganizationID: params.OrganizationID,
		Limit:          params.Limit,
		Offset:         params.Offset,
	}

	if params.SubscriptionID != "" {
		sub, ok := h.accessibleSubscription(c, params.SubscriptionID)
		if !ok {
			return
		}
		filter.SubscriptionID = &sub.ID
	}

	if params.Status != "" {
		status := schema.WebhookDeliveryStatus(params.Status)
		filter.Status = &status
	}

	deliveries, err := h.store.ListDeliveries(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "Failed to list deliveries")
		return
	}

	items := make([]dto.DeliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		items = append(items, dto.MapDeliveryToDTO(&deliveries[i]))
	}

	c.JSON(http.StatusOK, dto.DeliveryListResponse{
		Items:  items,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
}

// GetDelivery retrieves a delivery with its attempt log
func (h *handler) GetDelivery(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid delivery ID")
		return
	}

	delivery, err := h.store.GetDeliveryByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get delivery", zap.Uint64("delivery_id", id))
		return
	}
	if delivery == nil || !principal(c).CanAccess(delivery.OrganizationID) {
		respondNotFound(c, "Delivery not found")
		return
	}

	attempts, err := h.store.ListDeliveryAttempts(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to list delivery attempts", zap.Uint64("delivery_id", id))
		return
	}

	response := dto.MapDeliveryToDTO(delivery)
	response.AttemptLog = dto.MapDeliveryAttemptsToDTO(attempts)
	c.JSON(http.StatusOK, response)
}

// PublishEvent enqueues deliveries for a domain event
func (h *handler) PublishEvent(c *gin.Context) {
	var req dto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	organizationID, ok := resolveOrganization(c, req.OrganizationID)
	if !ok {
		return
	}

	event := domain.Event{
		ID:             req.EventID,
		Type:           domain.EventType(req.EventType),
		OrganizationID: organizationID,
		Data:           req.Data,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	}
	event.Normalize()
	// Assign the ID here so it can be returned to the caller
	if event.ID == "" {
		event.ID = dispatcher.NewEventID(h.clock.Now())
	}

	ids, err := h.dispatcher.Enqueue(c.Request.Context(), event)
	if err != nil {
		respondDomainError(c, err, "Failed to enqueue event")
		return
	}

	c.JSON(http.StatusAccepted, dto.PublishEventResponse{
		EventID:     event.ID,
		DeliveryIDs: ids,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "ff-webhook-api",
	})
}

// principal returns the authenticated caller; routes without Auth act as an operator
func principal(c *gin.Context) middleware.Principal {
	p, _ := middleware.PrincipalFromContext(c)
	return p
}

// resolveOrganization fills in the caller's organization and rejects requests for another one.
// It writes the error response itself when it returns false.
func resolveOrganization(c *gin.Context, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	p := principal(c)
	if !p.Scoped() {
		return requested, true
	}
	if requested == "" {
		return p.OrganizationID, true
	}
	if requested != p.OrganizationID {
		respondForbidden(c, "Organization not accessible", fmt.Sprintf("credentials are limited to organization %s", p.OrganizationID))
		return "", false
	}
	return requested, true
}

// accessibleSubscription loads a subscription the caller may see. Subscriptions of other
// organizations are reported as not found.
func (h *handler) accessibleSubscription(c *gin.Context, subscriptionID string) (*schema.WebhookSubscription, bool) {
	sub, err := h.registry.Get(c.Request.Context(), subscriptionID)
	if err != nil {
		respondDomainError(c, err, "Failed to get subscription")
		return nil, false
	}
	if !principal(c).CanAccess(sub.OrganizationID) {
		respondNotFound(c, "Subscription not found")
		return nil, false
	}
	return sub, true
}
