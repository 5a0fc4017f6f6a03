package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/dispatcher"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
	"github.com/feral-file/ff-webhook-engine/internal/store"
)

// RetrySchedulerConfig holds configuration for the retry scheduler
type RetrySchedulerConfig struct {
	PollInterval   time.Duration // Time to sleep after a cycle
	BatchSize      int           // Due deliveries fetched per cycle
	WorkerPoolSize int           // Concurrent delivery attempts
	ClaimTimeout   time.Duration // in_flight rows older than this are released
}

// retryScheduler implements the Scheduler interface for webhook deliveries
type retryScheduler struct {
	config     *RetrySchedulerConfig
	store      store.Store
	dispatcher dispatcher.Dispatcher
	clock      adapter.Clock
	pool       pond.Pool
	running    atomic.Bool
	stopChan   chan struct{}
	stoppedCh  chan struct{}
}

// NewRetryScheduler creates a new retry scheduler
func NewRetryScheduler(
	config *RetrySchedulerConfig,
	st store.Store,
	d dispatcher.Dispatcher,
	clock adapter.Clock,
) Scheduler {
	return &retryScheduler{
		config:     config,
		store:      st,
		dispatcher: d,
		clock:      clock,
		stopChan:   make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Name returns the scheduler's name
func (s *retryScheduler) Name() string {
	return "webhook-retry-scheduler"
}

// Start runs poll cycles until the context is canceled or Stop is called
func (s *retryScheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting webhook retry scheduler",
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("claim_timeout", s.config.ClaimTimeout),
	)

	s.pool = s.newPool(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Webhook retry scheduler stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Webhook retry scheduler stop requested")
			s.cleanup()
			return nil
		default:
			count, err := s.runCycle(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err)
			}
			// A full batch means more rows are likely due: go again without waiting
			if err == nil && count >= s.config.BatchSize {
				continue
			}
			s.sleep(ctx, s.config.PollInterval)
		}
	}
}

func (s *retryScheduler) newPool(ctx context.Context) pond.Pool {
	return pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)
}

// cleanup stops the worker pool and waits for in-flight attempts
func (s *retryScheduler) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the scheduler with timeout support
func (s *retryScheduler) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping webhook retry scheduler")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Webhook retry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Webhook retry scheduler stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runCycle releases stale claims, then attempts every due delivery once.
// Returns the number of due deliveries found.
func (s *retryScheduler) runCycle(ctx context.Context) (int, error) {
	startTime := s.clock.Now()

	if s.config.ClaimTimeout > 0 {
		if _, err := s.store.ReleaseStaleClaims(ctx, startTime.Add(-s.config.ClaimTimeout), startTime); err != nil {
			// Not fatal for the cycle: due rows can still be dispatched
			logger.ErrorCtx(ctx, err)
		}
	}

	ids, err := s.store.GetDueDeliveryIDs(ctx, startTime, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get due deliveries: %w", err)
	}

	if len(ids) == 0 {
		logger.DebugCtx(ctx, "No due webhook deliveries")
		return 0, nil
	}

	logger.InfoCtx(ctx, "Found due webhook deliveries", zap.Int("count", len(ids)))

	var delivered, retrying, failed, skipped, errored atomic.Int32

	for _, id := range ids {
		s.pool.Submit(func() {
			result, err := s.dispatcher.AttemptDelivery(ctx, id)
			if err != nil {
				errored.Add(1)
				if errors.Is(err, domain.ErrDeliveryClaimLost) || errors.Is(err, domain.ErrDeliveryNotFound) {
					logger.WarnCtx(ctx, "Webhook delivery attempt abandoned", zap.Uint64("delivery_id", id), zap.Error(err))
					return
				}
				logger.ErrorCtx(ctx, err, zap.Uint64("delivery_id", id))
				return
			}

			switch result.Outcome {
			case dispatcher.OutcomeDelivered:
				delivered.Add(1)
			case dispatcher.OutcomeRetrying:
				retrying.Add(1)
			case dispatcher.OutcomeFailed:
				failed.Add(1)
			default:
				skipped.Add(1)
			}
		})
	}

	// Wait for all attempts to complete
	s.pool.StopAndWait()

	// Recreate pool for next cycle
	s.pool = s.newPool(ctx)

	logger.InfoCtx(ctx, "Webhook retry cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("total", len(ids)),
		zap.Int32("delivered", delivered.Load()),
		zap.Int32("retrying", retrying.Load()),
		zap.Int32("failed", failed.Load()),
		zap.Int32("skipped", skipped.Load()),
		zap.Int32("errors", errored.Load()),
	)

	return len(ids), nil
}

// sleep waits for the given duration, returning early on cancellation or stop
func (s *retryScheduler) sleep(ctx context.Context, duration time.Duration) {
	select {
	case <-s.clock.After(duration):
	case <-ctx.Done():
	case <-s.stopChan:
	}
}
