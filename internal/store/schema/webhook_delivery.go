package schema

import (
	"time"
)

// WebhookDeliveryStatus is the status of a webhook delivery
type WebhookDeliveryStatus string

const (
	// WebhookDeliveryStatusPending is a delivery created by an event and never attempted
	WebhookDeliveryStatusPending WebhookDeliveryStatus = "pending"
	// WebhookDeliveryStatusRetrying is a delivery waiting for its next_retry_at after a transient failure
	WebhookDeliveryStatusRetrying WebhookDeliveryStatus = "retrying"
	// WebhookDeliveryStatusInFlight is a delivery claimed by exactly one dispatch attempt
	WebhookDeliveryStatusInFlight WebhookDeliveryStatus = "in_flight"
	// WebhookDeliveryStatusDelivered is a delivery acknowledged with a 2xx (terminal)
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	// WebhookDeliveryStatusFailed is a delivery that will never be attempted again (terminal)
	WebhookDeliveryStatusFailed WebhookDeliveryStatus = "failed"
)

// IsTerminal reports whether no transition may leave this status
func (s WebhookDeliveryStatus) IsTerminal() bool {
	return s == WebhookDeliveryStatusDelivered || s == WebhookDeliveryStatusFailed
}

// IsValidWebhookDeliveryStatus checks a status string from user input
func IsValidWebhookDeliveryStatus(s string) bool {
	switch WebhookDeliveryStatus(s) {
	case WebhookDeliveryStatusPending,
		WebhookDeliveryStatusRetrying,
		WebhookDeliveryStatusInFlight,
		WebhookDeliveryStatusDelivered,
		WebhookDeliveryStatusFailed:
		return true
	}
	return false
}

// WebhookFailureKind tells operators why a delivery failed
type WebhookFailureKind string

const (
	// WebhookFailureKindConfiguration means the subscription secret or URL is unusable
	WebhookFailureKindConfiguration WebhookFailureKind = "configuration"
	// WebhookFailureKindExhausted means every attempt failed transiently
	WebhookFailureKindExhausted WebhookFailureKind = "exhausted"
	// WebhookFailureKindSuppressed means an operator cancelled the delivery
	WebhookFailureKindSuppressed WebhookFailureKind = "suppressed"
)

// WebhookDelivery represents the webhook_deliveries table - one event payload tracked
// until it reaches one subscription endpoint or gives up
type WebhookDelivery struct {
	// ID is an auto-incrementing sequence number
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SubscriptionID references webhook_subscriptions.id
	SubscriptionID uint64 `gorm:"column:subscription_id;not null"`
	// OrganizationID is copied from the subscription for history queries
	OrganizationID string `gorm:"column:organization_id;not null;type:varchar(255)"`
	// EventID is a unique identifier for the event (ULID)
	EventID string `gorm:"column:event_id;not null;type:varchar(255)"`
	// EventType is the type of event being delivered
	EventType string `gorm:"column:event_type;not null;type:varchar(50)"`
	// Payload is the canonical JSON body, sent byte for byte on every attempt
	Payload string `gorm:"column:payload;not null;type:text"`
	// Status is the delivery state
	Status WebhookDeliveryStatus `gorm:"column:status;not null;default:pending"`
	// Attempts is the number of dispatch attempts that reached the endpoint or failed transiently
	Attempts int `gorm:"column:attempts;not null;default:0"`
	// MaxAttempts is the attempt ceiling snapshotted from the subscription
	MaxAttempts int `gorm:"column:max_attempts;not null"`
	// NextRetryAt is when the delivery becomes due; NULL once terminal
	NextRetryAt *time.Time `gorm:"column:next_retry_at;type:timestamptz"`
	// ClaimedAt is when the current in_flight claim was taken
	ClaimedAt *time.Time `gorm:"column:claimed_at;type:timestamptz"`
	// LastAttemptAt is the timestamp of the most recent attempt
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at;type:timestamptz"`
	// DeliveredAt is set when the endpoint answered 2xx
	DeliveredAt *time.Time `gorm:"column:delivered_at;type:timestamptz"`
	// ResponseStatus is the HTTP status code from the last attempt
	ResponseStatus *int `gorm:"column:response_status"`
	// ResponseBody is the response body from the last attempt (limited to 4KB)
	ResponseBody string `gorm:"column:response_body;type:text"`
	// ErrorMessage contains the last error
	ErrorMessage string `gorm:"column:error_message;type:text"`
	// SuppressedAt is when an operator suppressed the delivery
	SuppressedAt *time.Time `gorm:"column:suppressed_at;type:timestamptz"`
	// FailureKind is set together with the failed status
	FailureKind *WebhookFailureKind `gorm:"column:failure_kind;type:varchar(20)"`
	// CreatedAt is the timestamp when this delivery was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this delivery was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the WebhookDelivery model
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
