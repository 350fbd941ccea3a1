package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/models"
)

func TestPutAndGet(t *testing.T) {
	s := New()
	id := s.Put(models.ScrapeRequest{URL: "https://example.com"}, models.ScrapeResult{URL: "https://example.com", Body: "hi"})
	require.NotEmpty(t, id)

	page, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hi", page.Response.Body)
	assert.WithinDuration(t, time.Now(), page.CreatedAt, time.Second)
}

func TestGet_MissingIDReturnsFalse(t *testing.T) {
	s := New()
	_, ok := s.Get("does-not-exist")
	assert.False(t, ok)
}

func TestCleanupOlderThan_RemovesOnlyExpired(t *testing.T) {
	s := New()
	oldID := s.Put(models.ScrapeRequest{URL: "https://old.example"}, models.ScrapeResult{})
	s.pages[oldID] = models.StoredPage{
		ID:        oldID,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	freshID := s.Put(models.ScrapeRequest{URL: "https://fresh.example"}, models.ScrapeResult{})

	removed := s.CleanupOlderThan(time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Get(oldID)
	assert.False(t, ok)
	_, ok = s.Get(freshID)
	assert.True(t, ok)
}

func TestCleanupOlderThan_ZeroTTLRemovesEverything(t *testing.T) {
	s := New()
	s.Put(models.ScrapeRequest{URL: "https://a.example"}, models.ScrapeResult{})
	s.Put(models.ScrapeRequest{URL: "https://b.example"}, models.ScrapeResult{})
	require.Equal(t, 2, s.Len())

	removed := s.CleanupOlderThan(0)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, s.Len())
}

func TestRecover_AlwaysZero(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Recover())

	var _ Recoverable = s
}
