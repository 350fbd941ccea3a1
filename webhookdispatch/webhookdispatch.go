// Package webhookdispatch delivers a terminal BatchJob payload to a
// configured URL with bounded retries and exponential backoff. It is
// adapted from webhook/webhook.go (synchronous Deliver + header/timeout
// shape), generalized from a fixed retry-interval table to a per-attempt
// exponential formula, and from a single hardcoded event shape to the
// full BatchJob projection as the payload.
package webhookdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/PuerkitoBio/rehttp"

	"github.com/pageharvest/pageharvest/models"
)

// ServiceUserAgent identifies this service to webhook receivers when the
// request carries no caller-supplied User-Agent override.
const ServiceUserAgent = "pageharvest-webhook/1.0"

const (
	defaultMaxAttempts = 3
	defaultBackoffMs   = 500
)

// Dispatcher delivers webhook payloads with a shared per-attempt timeout
// and server-wide fallback retry defaults, applied whenever a request's
// WebhookConfig leaves MaxAttempts/BackoffMs unset.
type Dispatcher struct {
	Timeout            time.Duration
	DefaultMaxAttempts int
	DefaultBackoffMs   int
}

// New builds a Dispatcher using timeout as the per-attempt deadline
// (server config WEBHOOK_TIMEOUT_MS) and maxAttempts/backoffMs as the
// DEFAULT_WEBHOOK_MAX_ATTEMPTS/DEFAULT_WEBHOOK_BACKOFF_MS fallbacks.
func New(timeout time.Duration, maxAttempts, backoffMs int) *Dispatcher {
	return &Dispatcher{Timeout: timeout, DefaultMaxAttempts: maxAttempts, DefaultBackoffMs: backoffMs}
}

// Send delivers payload to cfg.URL, retrying up to cfg.MaxAttempts times
// with backoff `cfg.BackoffMs * 2^(k-2)` plus 10% positive jitter before
// attempt k. A nil cfg or empty URL is a no-op success —
// callers (batch worker loop, shutdown finalizer) only call Send when a
// webhook is actually configured, but this keeps the function safe to call
// unconditionally too.
func (d *Dispatcher) Send(ctx context.Context, cfg *models.WebhookConfig, payload models.WebhookPayload) error {
	if cfg == nil || cfg.URL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhookdispatch: marshal payload: %w", err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = d.DefaultMaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	backoffMs := cfg.BackoffMs
	if backoffMs < 1 {
		backoffMs = d.DefaultBackoffMs
	}
	if backoffMs < 1 {
		backoffMs = defaultBackoffMs
	}

	transport := rehttp.NewTransport(&perAttemptTimeoutTransport{rt: http.DefaultTransport, timeout: d.Timeout}, retryFn(maxAttempts), delayFn(backoffMs))
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhookdispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ServiceUserAgent)
	// Assigned directly (not Header.Set) to preserve the caller's header
	// casing; caller-supplied headers win over any default.
	for k, v := range cfg.Headers {
		req.Header[k] = []string{v}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhookdispatch: delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhookdispatch: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// retryFn succeeds an attempt iff the response status is in [200,299];
// network errors and non-2xx responses both count as failed attempts, up
// to maxAttempts total.
func retryFn(maxAttempts int) rehttp.RetryFn {
	return func(attempt rehttp.Attempt) bool {
		if attempt.Index >= maxAttempts-1 {
			return false
		}
		if attempt.Error != nil {
			return true
		}
		return attempt.Response.StatusCode < 200 || attempt.Response.StatusCode > 299
	}
}

// perAttemptTimeoutTransport bounds each individual RoundTrip to timeout,
// rather than bounding the whole retry-plus-backoff sequence the way an
// http.Client.Timeout would. rehttp.NewTransport calls rt.RoundTrip once
// per attempt, so wrapping the inner transport here (instead of setting
// Client.Timeout) is what makes the deadline per-attempt.
type perAttemptTimeoutTransport struct {
	rt      http.RoundTripper
	timeout time.Duration
}

func (t *perAttemptTimeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.rt.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.rt.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnCloseBody releases the per-attempt context once the caller is
// done reading the response body, instead of as soon as RoundTrip returns.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// delayFn implements exponential backoff: base = backoffMs * 2^(k-2) for
// the attempt about to start being attempt k (k >= 2), plus uniform 10%
// positive jitter. attempt.Index is 0 for the attempt that just failed, so
// k = attempt.Index + 2 for the one about to be scheduled.
func delayFn(backoffMs int) rehttp.DelayFn {
	return func(attempt rehttp.Attempt) time.Duration {
		k := attempt.Index + 2
		base := float64(backoffMs) * math.Pow(2, float64(k-2))
		jitter := rand.Float64() * 0.1 * base
		return time.Duration(base+jitter) * time.Millisecond
	}
}
