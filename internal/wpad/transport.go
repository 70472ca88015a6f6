package wpad

import (
	"fmt"
	"net/http"
	"time"

	httpkit "github.com/soulteary/http-kit"
	tracing "github.com/soulteary/tracing-kit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// retryableTransport wraps an http.RoundTripper with http-kit retry logic
// and tracing-kit spans, used only for WPAD candidate fetches — never for
// proxied client traffic, whose upstream dials go through
// internal/proxy.RetryingDialer instead.
type retryableTransport struct {
	baseTransport http.RoundTripper
	retryOpts     *httpkit.RetryOptions
}

// newRetryableTransport wraps baseTransport (which must never honor
// $http_proxy — see newFetchClient) with http-kit's retry policy, changed
// from its defaults to 2 retries with a 200ms to 2s backoff.
func newRetryableTransport(baseTransport http.RoundTripper) *retryableTransport {
	retryOpts := httpkit.DefaultRetryOptions()
	retryOpts.MaxRetries = 2
	retryOpts.RetryDelay = 200 * time.Millisecond
	retryOpts.MaxRetryDelay = 2 * time.Second
	retryOpts.BackoffMultiplier = 2.0

	return &retryableTransport{
		baseTransport: baseTransport,
		retryOpts:     retryOpts,
	}
}

func (rt *retryableTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	spanCtx, span := tracing.StartSpan(ctx, "wpad.fetch")
	defer span.End()

	tracing.SetSpanAttributesFromMap(span, map[string]interface{}{
		"http.method": req.Method,
		"http.url":    req.URL.String(),
	})

	propagator := otel.GetTextMapPropagator()
	propagator.Inject(spanCtx, propagation.HeaderCarrier(req.Header))

	var lastErr error
	maxAttempts := rt.retryOpts.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := rt.retryOpts.CalculateRetryDelay(attempt - 1)
			select {
			case <-ctx.Done():
				tracing.RecordError(span, ctx.Err())
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := rt.baseTransport.RoundTrip(req)
		if err != nil {
			lastErr = err
			if !rt.retryOpts.IsRetryableError(err, 0) {
				tracing.RecordError(span, err)
				return nil, fmt.Errorf("wpad fetch: %w", err)
			}
			if attempt >= rt.retryOpts.MaxRetries {
				tracing.RecordError(span, lastErr)
				return nil, fmt.Errorf("wpad fetch failed after retries: %w", lastErr)
			}
			continue
		}

		if rt.retryOpts.IsRetryableError(nil, resp.StatusCode) && attempt < rt.retryOpts.MaxRetries {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			tracing.SetSpanStatus(span, codes.Error, resp.Status)
		} else {
			tracing.SetSpanStatus(span, codes.Ok, "")
		}
		return resp, nil
	}

	if lastErr != nil {
		tracing.RecordError(span, lastErr)
		return nil, fmt.Errorf("wpad fetch failed after retries: %w", lastErr)
	}
	return nil, fmt.Errorf("no attempts made")
}

// newFetchClient builds an http.Client dedicated to WPAD candidate fetches.
// Proxy is explicitly nil so the fetch opens a fresh outbound connection
// and never traverses this proxy itself, even if $http_proxy/$https_proxy
// is set in the environment — per spec.md §4.5 step 2.
func newFetchClient(timeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy: nil,
	}
	return &http.Client{
		Transport: newRetryableTransport(base),
		Timeout:   timeout,
	}
}
