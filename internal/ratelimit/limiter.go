package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

// Config holds per-host outbound rate limit settings
type Config struct {
	// RequestsPerSecond is the sustained rate per target host; zero disables limiting
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once; defaults to the rounded-up rate
	Burst int
	// MaxWait bounds how long one request waits for a token
	MaxWait time.Duration
	// IdleTTL is how long an unused host limiter is kept
	IdleTTL time.Duration
}

// Enabled reports whether limiting is configured
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// HostLimiter spreads requests to the same target host over time
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=HostLimiter=MockHostLimiter
type HostLimiter interface {
	// Wait blocks until a request to the host of targetURL may proceed, MaxWait passes
	// or ctx is done
	Wait(ctx context.Context, targetURL string) error
}

// hostLimiter holds the limiting state of a single host
type hostLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

type limiter struct {
	config    Config
	clock     adapter.Clock
	mu        sync.Mutex
	hosts     map[string]*hostLimiter
	lastSweep time.Time
}

// NewHostLimiter creates a per-host limiter
func NewHostLimiter(cfg Config, clock adapter.Clock) HostLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(int(cfg.RequestsPerSecond+0.999), 1)
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	return &limiter{
		config:    cfg,
		clock:     clock,
		hosts:     make(map[string]*hostLimiter),
		lastSweep: clock.Now(),
	}
}

func (l *limiter) Wait(ctx context.Context, targetURL string) error {
	host := hostKey(targetURL)
	if host == "" {
		// Unparseable URLs are rejected by the sender
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.config.MaxWait)
	defer cancel()

	if err := l.get(host).Wait(waitCtx); err != nil {
		return fmt.Errorf("rate limit wait for host %s: %w", host, err)
	}
	return nil
}

// get returns the limiter of host, creating it on first use
func (l *limiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastSweep) >= l.config.IdleTTL {
		l.sweep(now)
	}

	h, ok := l.hosts[host]
	if !ok {
		h = &hostLimiter{limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)}
		l.hosts[host] = h
	}
	h.lastUsed = now
	return h.limiter
}

// sweep drops limiters idle for longer than IdleTTL. Caller holds mu.
func (l *limiter) sweep(now time.Time) {
	removed := 0
	for host, h := range l.hosts {
		if now.Sub(h.lastUsed) >= l.config.IdleTTL {
			delete(l.hosts, host)
			removed++
		}
	}
	l.lastSweep = now

	if removed > 0 {
		logger.Debug("Dropped idle host limiters", zap.Int("removed", removed), zap.Int("remaining", len(l.hosts)))
	}
}

// hostKey normalizes the host part of a URL, port included
func hostKey(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
