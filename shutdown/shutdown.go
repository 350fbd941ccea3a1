// Package shutdown implements the process-wide draining gate described in
// the concurrency model: a flag that flips once on signal, an in-flight
// request counter admitted requests must register against, and a bounded
// wait for those requests to drain before the process exits. Upstream
// main.go inlines this as a single signal.Notify/srv.Shutdown pair; here it
// is pulled out into an injectable Coordinator so the HTTP admission gate,
// the batch manager, and the cleanup scheduler can all observe the same
// draining state without importing cmd/pageharvestd.
package shutdown

import (
	"context"
	"sync/atomic"
	"time"
)

// Coordinator tracks whether the process is draining and how many requests
// are currently admitted. It is safe for concurrent use.
type Coordinator struct {
	draining atomic.Bool
	active   atomic.Int64
	drained  chan struct{}
}

// New returns a Coordinator in the non-draining state.
func New() *Coordinator {
	return &Coordinator{drained: make(chan struct{})}
}

// IsDraining reports whether MarkDraining has been called.
func (c *Coordinator) IsDraining() bool {
	return c.draining.Load()
}

// MarkDraining flips the coordinator into the draining state. Idempotent:
// calling it more than once has no further effect.
func (c *Coordinator) MarkDraining() {
	c.draining.Store(true)
}

// Inc registers one admitted request. Callers must pair every Inc with a
// Dec, typically via defer, regardless of how the request terminates.
func (c *Coordinator) Inc() {
	c.active.Add(1)
}

// Dec releases one admitted request.
func (c *Coordinator) Dec() {
	if c.active.Add(-1) == 0 && c.draining.Load() {
		select {
		case <-c.drained:
		default:
			close(c.drained)
		}
	}
}

// Active returns the current number of admitted, not-yet-completed requests.
func (c *Coordinator) Active() int64 {
	return c.active.Load()
}

// AwaitDrain blocks until Active reaches zero or ctx is done, whichever
// comes first. It must be called after MarkDraining; calling it before
// would race the close of drained against a request that hasn't started
// yet. Returns ctx.Err() on timeout, nil if every admitted request
// completed first.
func (c *Coordinator) AwaitDrain(ctx context.Context) error {
	if c.Active() == 0 {
		return nil
	}
	select {
	case <-c.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithTimeout is a convenience wrapper deriving a context bounded by the
// APP_CLOSE_TIMEOUT_MS deadline around AwaitDrain.
func (c *Coordinator) WithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.AwaitDrain(ctx)
}
