// Package retry computes when a failed webhook delivery becomes due again.
package retry

import (
	"math/rand/v2"
	"time"

	"github.com/feral-file/ff-webhook-engine/internal/domain"
)

// JitterFunc returns a uniformly distributed value in [0, n). n is always positive.
type JitterFunc func(n int64) int64

// Policy is exponential backoff with additive jitter:
//
//	delay(attempts) = min(base * 2^attempts, max) + rand[0, base)
//
// where attempts is the number of failed attempts so far. The exponential term is capped,
// the jitter is added on top so the interval keeps at least doubling until the cap.
type Policy struct {
	base   time.Duration
	max    time.Duration
	jitter JitterFunc
}

// Option configures a Policy
type Option func(*Policy)

// WithJitter replaces the random source, mainly for tests
func WithJitter(fn JitterFunc) Option {
	return func(p *Policy) {
		p.jitter = fn
	}
}

// NewPolicy creates a backoff policy. Zero or negative durations fall back to 30s base and 1h cap.
func NewPolicy(base, max time.Duration, opts ...Option) *Policy {
	if base <= 0 {
		base = domain.DEFAULT_RETRY_BASE_DELAY
	}
	if max <= 0 {
		max = domain.DEFAULT_RETRY_MAX_DELAY
	}
	if max < base {
		max = base
	}

	p := &Policy{
		base:   base,
		max:    max,
		jitter: rand.Int64N,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Base returns the base delay
func (p *Policy) Base() time.Duration {
	return p.base
}

// Max returns the cap on the exponential term
func (p *Policy) Max() time.Duration {
	return p.max
}

// Delay returns the wait before the next attempt after `attempts` failures
func (p *Policy) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}

	delay := p.max
	// Shift only while the result stays below the cap; avoids overflow for large counters
	if attempts < 62 {
		if d := p.base << uint(attempts); d > 0 && d < p.max && d>>uint(attempts) == p.base {
			delay = d
		}
	}

	return delay + time.Duration(p.jitter(int64(p.base)))
}

// WithRetryAfter honors a server Retry-After hint when it asks for a longer wait than delay.
// The hint is bounded by the policy cap.
func (p *Policy) WithRetryAfter(delay, hint time.Duration) time.Duration {
	if hint <= delay {
		return delay
	}
	if hint > p.max {
		return p.max
	}
	return hint
}
