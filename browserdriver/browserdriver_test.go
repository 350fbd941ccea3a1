package browserdriver

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNavTimeout_ClampsToTaskTimeoutWhenSmaller(t *testing.T) {
	assert.Equal(t, 5*time.Second, NavTimeout(5*time.Second, 30*time.Second))
}

func TestNavTimeout_UsesNavTimeoutWhenTaskTimeoutLarger(t *testing.T) {
	assert.Equal(t, 30*time.Second, NavTimeout(60*time.Second, 30*time.Second))
}

func TestNavTimeout_ZeroTaskTimeoutUsesNavTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, NavTimeout(0, 30*time.Second))
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestIsTrackerRequest(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.google-analytics.com/collect", true},
		{"https://fonts.googletagmanager.com/js", true},
		{"https://example.com/doubleclick.net", false},
		{"https://cdn.example.com/app.js", false},
		{"https://segment.io/v1/track", true},
	}
	for _, c := range cases {
		got := isTrackerRequest(mustParse(t, c.url))
		assert.Equal(t, c.want, got, c.url)
	}
}

func TestIsTrackerRequest_NilURL(t *testing.T) {
	assert.False(t, isTrackerRequest(nil))
}
