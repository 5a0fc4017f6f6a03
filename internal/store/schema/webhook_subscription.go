package schema

import (
	"time"
)

// WebhookSubscription represents the webhook_subscriptions table - registered interest of an
// organization in one event type, delivered to one target URL
type WebhookSubscription struct {
	// ID is an auto-incrementing sequence number
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SubscriptionID is the public identifier of the subscription (UUID)
	SubscriptionID string `gorm:"column:subscription_id;not null;unique;type:varchar(36)"`
	// OrganizationID is the organization owning this subscription
	OrganizationID string `gorm:"column:organization_id;not null;type:varchar(255)"`
	// EventType is the single event type this subscription receives (e.g., "badge.earned")
	EventType string `gorm:"column:event_type;not null;type:varchar(50)"`
	// TargetURL is the http(s) endpoint where deliveries are posted
	TargetURL string `gorm:"column:target_url;not null;type:text"`
	// Secret is the key used for HMAC-SHA256 signature generation
	Secret string `gorm:"column:secret;not null;type:text"`
	// Description is an optional operator note
	Description string `gorm:"column:description;type:text"`
	// IsActive indicates whether new events fan out to this subscription
	IsActive bool `gorm:"column:is_active;not null;default:true"`
	// MaxAttempts is the delivery attempt ceiling copied onto each new delivery
	MaxAttempts int `gorm:"column:max_attempts;not null;default:5"`
	// DeactivatedAt is set when the subscription is soft-disabled
	DeactivatedAt *time.Time `gorm:"column:deactivated_at;type:timestamptz"`
	// CreatedAt is the timestamp when this subscription was registered
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this subscription was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the WebhookSubscription model
func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}
