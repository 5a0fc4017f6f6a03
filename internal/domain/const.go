package domain

import "time"

const (
	// Retry defaults
	DEFAULT_RETRY_BASE_DELAY   = 30 * time.Second
	DEFAULT_RETRY_MAX_DELAY    = 1 * time.Hour
	DEFAULT_MAX_ATTEMPTS       = 5
	MAX_MAX_ATTEMPTS           = 20
	DEFAULT_DELIVERY_TIMEOUT   = 10 * time.Second
	DEFAULT_DELIVERY_USERAGENT = "ff-webhook-engine/1.0"

	// Response capture limits
	MAX_RESPONSE_BODY_BYTES = 4 * 1024
	MAX_ERROR_MESSAGE_CHARS = 1024

	// Identifier limits, matching the varchar(255) columns
	MAX_EVENT_ID_LENGTH        = 255
	MAX_ORGANIZATION_ID_LENGTH = 255
)
