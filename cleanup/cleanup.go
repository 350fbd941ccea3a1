// Package cleanup implements a re-entrant-safe, throttled periodic sweep:
// a ticker invokes TriggerCleanup, which is safe to call concurrently (a
// run in progress is shared, not duplicated) and safe to call rapidly (a
// call within minInterval of the last run is a no-op). This differs from
// running eviction directly inside cache/cache.go's unexported ticker
// goroutine; pulling the policy out into its own package is what makes
// triggerCleanup independently testable.
package cleanup

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Store is the minimal capability both the page store (memstore.Store)
// and the batch job store (batch.Manager) expose to the scheduler.
type Store interface {
	CleanupOlderThan(ttl time.Duration) int
}

// Config controls sweep timing.
type Config struct {
	// Interval is how often the background ticker fires (CLEANUP_INTERVAL_MINS).
	Interval time.Duration
	// MinInterval throttles back-to-back triggers (including the explicit
	// TriggerCleanup call racing the ticker).
	MinInterval time.Duration
	// DataLifetime is the TTL passed to both stores' CleanupOlderThan
	// (DATA_LIFETIME_MINS).
	DataLifetime time.Duration
}

// run is the shared in-flight promise concurrent TriggerCleanup callers
// wait on instead of starting a second sweep.
type run struct {
	done    chan struct{}
	removed int
}

// Scheduler owns the periodic cleanup ticker and the re-entrant trigger.
type Scheduler struct {
	clock clock.Clock
	store Store
	batch Store
	cfg   Config

	mu             sync.Mutex
	inFlight       *run
	lastRunStarted time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  chan struct{}
}

// New builds a Scheduler. clk may be nil to use the real wall clock;
// tests inject a clock.Mock to assert throttling without sleeping.
func New(clk clock.Clock, store, batch Store, cfg Config) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock:   clk,
		store:   store,
		batch:   batch,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the background ticker. It is not safe to call twice.
func (s *Scheduler) Start() {
	go s.tickLoop()
}

func (s *Scheduler) tickLoop() {
	defer close(s.stopped)
	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.TriggerCleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Stop halts the ticker and awaits any in-flight sweep before returning
//.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.stopped

	s.mu.Lock()
	f := s.inFlight
	s.mu.Unlock()
	if f != nil {
		<-f.done
	}
}

// TriggerCleanup runs (or joins) a sweep and returns the total number of
// entries removed across both stores. Re-entrant: a call while a sweep is
// already running returns that sweep's result instead of starting a new
// one. Throttled: a call within cfg.MinInterval of the last sweep's start
// is a no-op (returns 0, no sweep performed).
func (s *Scheduler) TriggerCleanup() int {
	s.mu.Lock()
	if s.inFlight != nil {
		f := s.inFlight
		s.mu.Unlock()
		<-f.done
		return f.removed
	}
	if !s.lastRunStarted.IsZero() && s.clock.Now().Sub(s.lastRunStarted) < s.cfg.MinInterval {
		s.mu.Unlock()
		return 0
	}

	f := &run{done: make(chan struct{})}
	s.inFlight = f
	s.lastRunStarted = s.clock.Now()
	s.mu.Unlock()

	removed := s.sweep()

	s.mu.Lock()
	s.inFlight = nil
	s.mu.Unlock()
	f.removed = removed
	close(f.done)
	return removed
}

// sweep calls both stores' CleanupOlderThan in parallel and sums removals
//.
func (s *Scheduler) sweep() int {
	var storeRemoved, batchRemoved int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		storeRemoved = s.store.CleanupOlderThan(s.cfg.DataLifetime)
	}()
	go func() {
		defer wg.Done()
		batchRemoved = s.batch.CleanupOlderThan(s.cfg.DataLifetime)
	}()
	wg.Wait()
	return storeRemoved + batchRemoved
}
