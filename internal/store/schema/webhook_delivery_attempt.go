package schema

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookDeliveryAttempt represents the webhook_delivery_attempts table - append-only log of
// every dispatch attempt
type WebhookDeliveryAttempt struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// DeliveryID references webhook_deliveries.id
	DeliveryID uint64 `gorm:"column:delivery_id;not null"`
	// AttemptNumber is 1-based; configuration failures log the attempt they would have been
	AttemptNumber int `gorm:"column:attempt_number;not null"`
	// Outcome is the delivery status the attempt led to
	Outcome WebhookDeliveryStatus `gorm:"column:outcome;not null"`
	// ResponseStatus is nil for transport errors
	ResponseStatus *int `gorm:"column:response_status"`
	// ResponseHeaders holds a subset of response headers
	ResponseHeaders datatypes.JSON `gorm:"column:response_headers;type:jsonb"`
	ErrorMessage    string         `gorm:"column:error_message;type:text"`
	DurationMs      int64          `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the WebhookDeliveryAttempt model
func (WebhookDeliveryAttempt) TableName() string {
	return "webhook_delivery_attempts"
}
