package dto

import (
	"time"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

// RegisterSubscriptionRequest is the body of POST /subscriptions
type RegisterSubscriptionRequest struct {
	// OrganizationID defaults to the caller's organization
	OrganizationID string `json:"organization_id"`
	EventType      string `json:"event_type" binding:"required"`
	TargetURL      string `json:"target_url" binding:"required"`
	Secret         string `json:"secret"`
	Description    string `json:"description"`
	MaxAttempts    int    `json:"max_attempts"`
}

// SuppressDeliveriesRequest is the optional body of POST /subscriptions/:id/suppress
type SuppressDeliveriesRequest struct {
	Reason string `json:"reason"`
}

// SubscriptionResponse represents a webhook subscription. Secret is only set right after registration.
type SubscriptionResponse struct {
	SubscriptionID string           `json:"subscription_id"`
	OrganizationID string           `json:"organization_id"`
	EventType      domain.EventType `json:"event_type"`
	TargetURL      string           `json:"target_url"`
	Secret         string           `json:"secret,omitempty"`
	Description    string           `json:"description,omitempty"`
	IsActive       bool             `json:"is_active"`
	MaxAttempts    int              `json:"max_attempts"`
	DeactivatedAt  *time.Time       `json:"deactivated_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SubscriptionListResponse represents a list of subscriptions
type SubscriptionListResponse struct {
	Items []SubscriptionResponse `json:"items"`
}

// SuppressDeliveriesResponse reports how many deliveries were cancelled
type SuppressDeliveriesResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Suppressed     int64  `json:"suppressed"`
}

// MapSubscriptionToDTO maps a subscription row to its response, leaving the secret out
func MapSubscriptionToDTO(sub *schema.WebhookSubscription) SubscriptionResponse {
	return SubscriptionResponse{
		SubscriptionID: sub.SubscriptionID,
		OrganizationID: sub.OrganizationID,
		EventType:      domain.EventType(sub.EventType),
		TargetURL:      sub.TargetURL,
		Description:    sub.Description,
		IsActive:       sub.IsActive,
		MaxAttempts:    sub.MaxAttempts,
		DeactivatedAt:  sub.DeactivatedAt,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
}

// MapSubscriptionsToDTO maps subscription rows to responses
func MapSubscriptionsToDTO(subs []schema.WebhookSubscription) []SubscriptionResponse {
	items := make([]SubscriptionResponse, 0, len(subs))
	for i := range subs {
		items = append(items, MapSubscriptionToDTO(&subs[i]))
	}
	return items
}
