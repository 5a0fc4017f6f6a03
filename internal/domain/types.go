package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var eventIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// EventType represents the type of a platform domain event
type EventType string

const (
	EventTypeQuestCompleted   EventType = "quest.completed"
	EventTypeTaskCompleted    EventType = "task.completed"
	EventTypeTaskSubmitted    EventType = "task.submitted"
	EventTypeBadgeEarned      EventType = "badge.earned"
	EventTypeUserRegistered   EventType = "user.registered"
	EventTypeGradeUpdated     EventType = "grade.updated"
	EventTypeQuestStarted     EventType = "quest.started"
	EventTypeEvidenceUploaded EventType = "evidence.uploaded"
)

// SupportedEventTypes lists every event type a subscription may target
var SupportedEventTypes = []EventType{
	EventTypeQuestCompleted,
	EventTypeTaskCompleted,
	EventTypeTaskSubmitted,
	EventTypeBadgeEarned,
	EventTypeUserRegistered,
	EventTypeGradeUpdated,
	EventTypeQuestStarted,
	EventTypeEvidenceUploaded,
}

// IsValidEventType checks if an event type belongs to the fixed set
func IsValidEventType(eventType string) bool {
	for _, t := range SupportedEventTypes {
		if string(t) == eventType {
			return true
		}
	}
	return false
}

// String returns the string form of the event type
func (e EventType) String() string {
	return string(e)
}

// Event is a domain event emitted by the host application
type Event struct {
	// ID is a unique identifier for the event (ULID). Assigned on enqueue when empty.
	ID string `json:"event_id,omitempty"`
	// Type is one of SupportedEventTypes
	Type EventType `json:"event_type"`
	// OrganizationID scopes the event to one organization
	OrganizationID string `json:"organization_id"`
	// OccurredAt is when the event happened. Assigned on enqueue when zero.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
	// Data is the event body, any JSON value
	Data json.RawMessage `json:"data,omitempty"`
}

// Normalize trims surrounding whitespace from the identifiers
func (e *Event) Normalize() {
	e.ID = strings.TrimSpace(e.ID)
	e.OrganizationID = strings.TrimSpace(e.OrganizationID)
}

// Validate validates the event before it is turned into deliveries
func (e *Event) Validate() error {
	if !IsValidEventType(string(e.Type)) {
		return NewValidationError("event_type", "unsupported event type: "+string(e.Type))
	}
	if e.ID != "" {
		if len(e.ID) > MAX_EVENT_ID_LENGTH {
			return NewValidationError("event_id",
				fmt.Sprintf("event_id must be at most %d characters", MAX_EVENT_ID_LENGTH))
		}
		if !eventIDPattern.MatchString(e.ID) {
			return NewValidationError("event_id", "event_id may only contain letters, digits and . _ : -")
		}
	}
	if e.OrganizationID == "" || strings.TrimSpace(e.OrganizationID) != e.OrganizationID {
		return NewValidationError("organization_id", "organization_id is required and must not have surrounding whitespace")
	}
	if len(e.OrganizationID) > MAX_ORGANIZATION_ID_LENGTH {
		return NewValidationError("organization_id",
			fmt.Sprintf("organization_id must be at most %d characters", MAX_ORGANIZATION_ID_LENGTH))
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return NewValidationError("data", "data must be valid JSON")
	}
	return nil
}
