// Package memstore holds StoredPages in memory, keyed by id, and supports
// TTL-based eviction for the Cleanup Scheduler. It is adapted from the
// teacher's cache/cache.go, pulling eviction out of that file's internal
// background ticker into a pure, externally-callable CleanupOlderThan so
// the scheduling policy lives in package cleanup instead.
package memstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pageharvest/pageharvest/models"
)

// Store is an in-memory, concurrency-safe StoredPage repository.
type Store struct {
	mu    sync.RWMutex
	pages map[string]models.StoredPage
}

// New creates an empty Store.
func New() *Store {
	return &Store{pages: make(map[string]models.StoredPage)}
}

// Put assigns a fresh id, stamps CreatedAt, stores the page, and returns
// its id.
func (s *Store) Put(req models.ScrapeRequest, res models.ScrapeResult) string {
	id := uuid.NewString()
	page := models.StoredPage{
		ID:        id,
		Request:   req,
		Response:  res,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.pages[id] = page
	s.mu.Unlock()

	return id
}

// Get returns the page for id, if present.
func (s *Store) Get(id string) (models.StoredPage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	return p, ok
}

// Len reports the current number of stored pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// CleanupOlderThan removes every page with now-createdAt >= ttl and
// returns the number removed.
func (s *Store) CleanupOlderThan(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.pages {
		if !p.CreatedAt.After(cutoff) {
			delete(s.pages, id)
			removed++
		}
	}
	return removed
}

// Recoverable is implemented by stores that can report jobs/pages that
// were persisted in a non-terminal state across a restart. Store's
// in-memory nature means there is never anything to recover; it
// satisfies the interface truthfully rather than by omission.
type Recoverable interface {
	Recover() int
}

// Recover always reports zero: an in-memory Store cannot survive a
// restart, so there is nothing persisted to recover.
func (s *Store) Recover() int {
	return 0
}
