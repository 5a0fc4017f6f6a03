package dto

import (
	"encoding/json"
	"time"

	"github.com/feral-file/ff-webhook-engine/internal/store/schema"
)

// DeliveryResponse represents a webhook delivery with optional attempt log
type DeliveryResponse struct {
	ID             uint64                       `json:"id"`
	OrganizationID string                       `json:"organization_id"`
	EventID        string                       `json:"event_id"`
	EventType      string                       `json:"event_type"`
	Payload        json.RawMessage              `json:"payload"`
	Status         schema.WebhookDeliveryStatus `json:"status"`
	FailureKind    *schema.WebhookFailureKind   `json:"failure_kind,omitempty"`
	Attempts       int                          `json:"attempts"`
	MaxAttempts    int                          `json:"max_attempts"`
	NextRetryAt    *time.Time                   `json:"next_retry_at,omitempty"`
	LastAttemptAt  *time.Time                   `json:"last_attempt_at,omitempty"`
	DeliveredAt    *time.Time                   `json:"delivered_at,omitempty"`
	ResponseStatus *int                         `json:"response_status,omitempty"`
	ResponseBody   string                       `json:"response_body,omitempty"`
	ErrorMessage   string                       `json:"error_message,omitempty"`
	SuppressedAt   *time.Time                   `json:"suppressed_at,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`

	AttemptLog []DeliveryAttemptResponse `json:"attempt_log,omitempty"`
}

// DeliveryAttemptResponse represents one entry of the attempt log
type DeliveryAttemptResponse struct {
	AttemptNumber   int                          `json:"attempt_number"`
	Outcome         schema.WebhookDeliveryStatus `json:"outcome"`
	ResponseStatus  *int                         `json:"response_status,omitempty"`
	ResponseHeaders json.RawMessage              `json:"response_headers,omitempty"`
	ErrorMessage    string                       `json:"error_message,omitempty"`
	DurationMs      int64                        `json:"duration_ms"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// DeliveryListResponse represents a page of deliveries
type DeliveryListResponse struct {
	Items  []DeliveryResponse `json:"items"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// MapDeliveryToDTO maps a delivery row to its response
func MapDeliveryToDTO(d *schema.WebhookDelivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		OrganizationID: d.OrganizationID,
		EventID:        d.EventID,
		EventType:      d.EventType,
		Payload:        json.RawMessage(d.Payload),
		Status:         d.Status,
		FailureKind:    d.FailureKind,
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		NextRetryAt:    d.NextRetryAt,
		LastAttemptAt:  d.LastAttemptAt,
		DeliveredAt:    d.DeliveredAt,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		ErrorMessage:   d.ErrorMessage,
		SuppressedAt:   d.SuppressedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MapDeliveryAttemptsToDTO maps attempt log rows to responses
func MapDeliveryAttemptsToDTO(attempts []schema.WebhookDeliveryAttempt) []DeliveryAttemptResponse {
	items := make([]DeliveryAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		item := DeliveryAttemptResponse{
			AttemptNumber:  a.AttemptNumber,
			Outcome:        a.Outcome,
			ResponseStatus: a.ResponseStatus,
			ErrorMessage:   a.ErrorMessage,
			DurationMs:     a.DurationMs,
			CreatedAt:      a.CreatedAt,
		}
		if len(a.ResponseHeaders) > 0 {
			item.ResponseHeaders = json.RawMessage(a.ResponseHeaders)
		}
		items = append(items, item)
	}
	return items
}
