package ratelimit

import (
	"context"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/webhook"
)

type throttledSender struct {
	next    webhook.Sender
	limiter HostLimiter
}

// NewThrottledSender wraps sender so requests to one host respect the limiter.
// A nil limiter returns sender unchanged.
func NewThrottledSender(sender webhook.Sender, limiter HostLimiter) webhook.Sender {
	if limiter == nil {
		return sender
	}
	return &throttledSender{next: sender, limiter: limiter}
}

// Send waits for the target host's turn, then sends. A wait that runs out counts as a
// transient failure of the attempt.
func (s *throttledSender) Send(ctx context.Context, req webhook.Request) (*webhook.Response, error) {
	if err := s.limiter.Wait(ctx, req.URL); err != nil {
		return nil, &domain.TransientDeliveryError{Err: err}
	}
	return s.next.Send(ctx, req)
}
