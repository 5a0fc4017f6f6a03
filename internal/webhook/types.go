package webhook

import (
	"encoding/json"
	"net/http"
	"time"
)

// Header names set on every delivery request
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEventID    = "X-Webhook-Event-ID"
	HeaderEventType  = "X-Webhook-Event-Type"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
	HeaderTimestamp  = "X-Webhook-Timestamp"
	HeaderAttempt    = "X-Webhook-Attempt"
)

// Envelope is the JSON document delivered to subscribers. It is canonicalized before it is
// stored so every attempt resends the same bytes.
type Envelope struct {
	// EventID is a unique identifier for this event (ULID for time-sortable uniqueness)
	EventID string `json:"event_id"`
	// EventType is the type of event (e.g., "badge.earned")
	EventType string `json:"event_type"`
	// OrganizationID is the organization the event belongs to
	OrganizationID string `json:"organization_id"`
	// OccurredAt is when the event happened
	OccurredAt time.Time `json:"occurred_at"`
	// Data contains the event body as sent by the host application
	Data json.RawMessage `json:"data"`
}

// Request is one outbound delivery attempt
type Request struct {
	URL        string
	Secret     string
	Body       []byte
	EventID    string
	EventType  string
	DeliveryID uint64
	Attempt    int
	Timestamp  time.Time
}

// Response is what the endpoint answered. Nil when the request never got a response.
type Response struct {
	// StatusCode is the HTTP status code returned by the webhook endpoint
	StatusCode int
	// Body is the response body (limited to 4KB)
	Body string
	// Headers is a subset of response headers worth keeping in the attempt log
	Headers map[string]string
	// RetryAfter is the parsed Retry-After hint, zero when absent
	RetryAfter time.Duration
	// Duration is the round trip time
	Duration time.Duration
}

// Success reports whether the endpoint acknowledged the delivery
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
