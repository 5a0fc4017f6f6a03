package scheduler

import (
	"context"
)

// Scheduler is a long-running background loop that hands due webhook deliveries to the dispatcher
//
//go:generate mockgen -source=scheduler.go -destination=../mocks/scheduler.go -package=mocks -mock_names=Scheduler=MockScheduler
type Scheduler interface {
	// Start begins the scheduler's main loop
	// This is a blocking call that runs until the context is canceled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler
	// This waits for in-progress attempts to complete
	Stop(ctx context.Context) error

	// Name returns the scheduler's name for logging and identification
	Name() string
}
