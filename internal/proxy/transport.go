// Package proxy provides upstream-dial helpers shared by handler: retrying
// a direct-target or chained-proxy TCP dial with tracing, independent of
// the HTTP/1.x framing handler lays on top of the resulting net.Conn.
package proxy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	httpkit "github.com/soulteary/http-kit"
	"go.opentelemetry.io/otel/codes"

	tracing "github.com/soulteary/tracing-kit"
)

// DialFunc performs a single dial attempt.
type DialFunc func(ctx context.Context) (net.Conn, error)

// RetryingDialer wraps a DialFunc with bounded retries and a trace span per
// attempt sequence, for dialing a CONNECT/forward upstream (direct target or
// chained proxy) per spec.md §4.1.
type RetryingDialer struct {
	retryOpts *httpkit.RetryOptions
}

// NewRetryingDialer constructs a RetryingDialer using http-kit's retry
// policy, tuned down from its HTTP-client defaults: an interactive proxy
// connection should fail fast rather than hold a client socket open through
// a long backoff.
func NewRetryingDialer() *RetryingDialer {
	retryOpts := httpkit.DefaultRetryOptions()
	retryOpts.MaxRetries = 2
	retryOpts.RetryDelay = 50 * time.Millisecond
	retryOpts.MaxRetryDelay = 500 * time.Millisecond
	retryOpts.BackoffMultiplier = 2.0

	return &RetryingDialer{retryOpts: retryOpts}
}

// Dial attempts dial, retrying errors http-kit classifies as transient, and
// records the attempt sequence as a trace span named spanName.
func (d *RetryingDialer) Dial(ctx context.Context, spanName string, dial DialFunc) (net.Conn, error) {
	spanCtx, span := tracing.StartSpan(ctx, spanName)
	defer span.End()

	var lastErr error
	maxAttempts := d.retryOpts.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.retryOpts.CalculateRetryDelay(attempt - 1)
			select {
			case <-spanCtx.Done():
				tracing.RecordError(span, spanCtx.Err())
				return nil, spanCtx.Err()
			case <-time.After(delay):
			}
			tracing.SetSpanAttributes(span, map[string]string{
				"retry.attempt": strconv.Itoa(attempt),
			})
		}

		conn, err := dial(spanCtx)
		if err == nil {
			tracing.SetSpanStatus(span, codes.Ok, "")
			return conn, nil
		}

		lastErr = err
		if !d.retryOpts.IsRetryableError(err, 0) {
			tracing.RecordError(span, err)
			return nil, fmt.Errorf("dial failed: %w", err)
		}
	}

	tracing.RecordError(span, lastErr)
	return nil, fmt.Errorf("dial failed after %d attempts: %w", maxAttempts, lastErr)
}
