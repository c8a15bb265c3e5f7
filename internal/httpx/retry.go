// Package httpx provides the outbound HTTP client shared by every provider:
// a bounded-retry transport with a fixed inter-attempt delay.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telence/telence-go/internal/logger"
)

const (
	DefaultRetries = 3
	DefaultDelay   = time.Second
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4096
)

var log = logger.With("httpx")

// StatusError captures a non-success upstream response with its body.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// RetryPolicy bounds outbound attempts. Callers accept duplicate-call risk:
// the transport performs no deduplication.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

type retryTransport struct {
	base    http.RoundTripper
	policy  RetryPolicy
	timeout time.Duration
}

// NewClient returns an HTTP client whose requests are retried per policy.
// The timeout applies per attempt, independent of the inter-attempt delay.
func NewClient(policy RetryPolicy, timeout time.Duration) *http.Client {
	if policy.Retries <= 0 {
		policy.Retries = DefaultRetries
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultDelay
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &retryTransport{base: http.DefaultTransport, policy: policy, timeout: timeout},
	}
}

// RoundTrip performs up to Retries attempts. A non-2xx status counts as a
// failure with the body folded into the error; the last error is propagated
// after exhaustion.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= t.policy.Retries; attempt++ {
		resp, err := t.attempt(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == t.policy.Retries {
			log.Error("request failed after final attempt", "url", req.URL.String(), "attempts", attempt, "error", lastErr)
			break
		}
		log.Warn("retrying request", "url", req.URL.String(), "attempt", attempt, "retries", t.policy.Retries, "error", lastErr)

		select {
		case <-time.After(t.policy.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return nil, lastErr
}

// attempt performs one timed round trip. On success the attempt's cancel is
// tied to the response body Close.
func (t *retryTransport) attempt(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	attemptReq := req.Clone(ctx)
	if err := rewindBody(attemptReq); err != nil {
		cancel()
		return nil, err
	}

	resp, err := t.base.RoundTrip(attemptReq)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: string(body)}
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// rewindBody restores the request body so the attempt can resend it.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
