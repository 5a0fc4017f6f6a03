package messaging

import (
	"context"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
)

// Publisher defines the interface for publishing domain events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a domain event. The event ID is assigned when empty and
	// doubles as the broker's deduplication key.
	PublishEvent(ctx context.Context, event domain.Event) (string, error)
	// Close closes the connection
	Close()
}
