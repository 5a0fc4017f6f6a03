package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSubscriptionNotFound is returned when a subscription does not exist
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrDeliveryNotFound is returned when a delivery does not exist
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrDeliveryClaimLost is returned when a delivery row was no longer owned by the caller
	// at the time of a conditional write
	ErrDeliveryClaimLost = errors.New("delivery claim lost")
)

// ValidationError is returned for bad input at registration or enqueue time. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError is returned when a subscription with the same
// organization, event type and target URL already exists
type ConflictError struct {
	OrganizationID string
	EventType      EventType
	TargetURL      string
	Err            error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("subscription already exists for organization %s, event %s, url %s",
		e.OrganizationID, e.EventType, e.TargetURL)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a subscription that can never be delivered as configured
// (bad secret or target URL). The delivery fails without consuming retry budget.
type ConfigurationError struct {
	SubscriptionID string
	Reason         string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("subscription %s misconfigured: %s", e.SubscriptionID, e.Reason)
}

// TransientDeliveryError is a network error, timeout or non-2xx response.
// StatusCode is zero for transport errors.
type TransientDeliveryError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientDeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transient delivery error"
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}

// ExhaustedRetriesError is the terminal error recorded once a delivery used all its attempts
type ExhaustedRetriesError struct {
	DeliveryID uint64
	Attempts   int
	Last       error
}

func (e *ExhaustedRetriesError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("delivery %d exhausted %d attempts", e.DeliveryID, e.Attempts)
	}
	return fmt.Sprintf("delivery %d exhausted %d attempts: %v", e.DeliveryID, e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Last
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflictError reports whether err is a ConflictError
func IsConflictError(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
