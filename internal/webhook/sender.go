package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

// keptResponseHeaders are copied into the attempt log
var keptResponseHeaders = []string{"Content-Type", "Retry-After", "X-Request-Id"}

const maxHeaderValueBytes = 256

// Sender posts one signed delivery to a subscriber endpoint
//
//go:generate mockgen -source=sender.go -destination=../mocks/sender.go -package=mocks -mock_names=Sender=MockSender
type Sender interface {
	// Send performs a single POST. A non-2xx answer returns both the response and a
	// *domain.TransientDeliveryError; a transport failure returns a nil response.
	Send(ctx context.Context, req Request) (*Response, error)
}

type httpSender struct {
	client    adapter.HTTPClient
	clock     adapter.Clock
	userAgent string
}

// NewHTTPSender creates a Sender on top of an HTTP client. The client carries the timeout.
func NewHTTPSender(client adapter.HTTPClient, clock adapter.Clock, userAgent string) Sender {
	if userAgent == "" {
		userAgent = domain.DEFAULT_DELIVERY_USERAGENT
	}
	return &httpSender{client: client, clock: clock, userAgent: userAgent}
}

// Send signs the body and posts it
func (s *httpSender) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("invalid target url: %v", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set(HeaderSignature, Sign(req.Secret, req.Body))
	httpReq.Header.Set(HeaderEventID, req.EventID)
	httpReq.Header.Set(HeaderEventType, req.EventType)
	httpReq.Header.Set(HeaderDeliveryID, strconv.FormatUint(req.DeliveryID, 10))
	httpReq.Header.Set(HeaderAttempt, strconv.Itoa(req.Attempt))
	httpReq.Header.Set(HeaderTimestamp, strconv.FormatInt(req.Timestamp.Unix(), 10))

	start := s.clock.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &domain.TransientDeliveryError{Err: fmt.Errorf("failed to send webhook: %w", err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.WarnCtx(ctx, "Failed to close webhook response body", zap.Error(err))
		}
	}()

	// Only the first 4KB of the answer are kept, as valid UTF-8
	body, err := io.ReadAll(io.LimitReader(resp.Body, domain.MAX_RESPONSE_BODY_BYTES))
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read webhook response body", zap.Error(err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Body:       domain.SanitizeText(string(body), domain.MAX_RESPONSE_BODY_BYTES),
		Headers:    pickHeaders(resp.Header),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), s.clock.Now()),
		Duration:   s.clock.Since(start),
	}

	if !result.Success() {
		return result, &domain.TransientDeliveryError{
			StatusCode: resp.StatusCode,
			RetryAfter: result.RetryAfter,
		}
	}

	return result, nil
}

func pickHeaders(h http.Header) map[string]string {
	headers := make(map[string]string)
	for _, name := range keptResponseHeaders {
		if v := domain.SanitizeText(h.Get(name), maxHeaderValueBytes); v != "" {
			headers[name] = v
		}
	}
	return headers
}

// parseRetryAfter accepts delay-seconds or an HTTP-date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
