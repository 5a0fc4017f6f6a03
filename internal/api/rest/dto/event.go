package dto

import (
	"encoding/json"
	"time"
)

// PublishEventRequest is the body of POST /events
type PublishEventRequest struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type" binding:"required"`
	// OrganizationID defaults to the caller's organization
	OrganizationID string          `json:"organization_id"`
	OccurredAt     *time.Time      `json:"occurred_at"`
	Data           json.RawMessage `json:"data"`
}

// PublishEventResponse reports the deliveries created for an event
type PublishEventResponse struct {
	EventID     string   `json:"event_id"`
	DeliveryIDs []uint64 `json:"delivery_ids"`
}
