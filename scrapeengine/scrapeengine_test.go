package scrapeengine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/extractor"
	"github.com/pageharvest/pageharvest/fetch"
	"github.com/pageharvest/pageharvest/fingerprint"
	"github.com/pageharvest/pageharvest/markdown"
	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/pool"
)

func newEngine() *Engine {
	return New(
		pool.New("generic", 4, 4),
		pool.New("browser", 2, 2),
		nil,
		extractor.New(&fetch.Client{}),
		markdown.New(),
		Config{
			DefaultMode:            models.ModeStatic,
			NavTimeout:             5 * time.Second,
			MaxBodyBytes:           1 << 20,
			FingerprintDefaults:    fingerprint.Defaults{Generate: true, UserAgent: "test-agent", Locale: "en-US", TimezoneID: "UTC"},
			RotateOnAntiBotDefault: true,
		},
	)
}

func TestScrape_StaticMode_ConvertsToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Hello</title></head><body>
			<article><h1>Hello</h1><p>` + longParagraph() + `</p></article>
		</body></html>`))
	}))
	defer srv.Close()

	e := newEngine()
	req := &models.ScrapeRequest{URL: srv.URL, Mode: models.ModeStatic}

	res, err := e.Scrape(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, res.Body, "#")
	assert.False(t, res.Meta.RawBody)
	assert.GreaterOrEqual(t, res.Meta.ReadTimeMin, 0)
}

func TestScrape_StaticMode_RawBodySkipsMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Hello</title></head><body>
			<article><h1>Hello</h1><p>` + longParagraph() + `</p></article>
		</body></html>`))
	}))
	defer srv.Close()

	e := newEngine()
	req := &models.ScrapeRequest{URL: srv.URL, Mode: models.ModeStatic, RawBody: true}

	res, err := e.Scrape(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Meta.RawBody)
	assert.Contains(t, res.Body, "<h1>")
}

func TestScrape_StaticMode_UsesDefaultModeWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><article><p>` + longParagraph() + `</p></article></body></html>`))
	}))
	defer srv.Close()

	e := newEngine()
	req := &models.ScrapeRequest{URL: srv.URL}

	_, err := e.Scrape(context.Background(), req)
	require.NoError(t, err)
}

func TestScrape_StaticMode_ErrorStatusClassifiedAsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer srv.Close()

	e := newEngine()
	req := &models.ScrapeRequest{URL: srv.URL, Mode: models.ModeStatic}

	_, err := e.Scrape(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestScrape_BrowserMode_NilDriverFailsWithBrowserKind(t *testing.T) {
	e := newEngine()
	req := &models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeBrowser}

	_, err := e.Scrape(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.Browser, apperr.KindOf(err))
}

func TestScrape_PoolOverloadedPropagates(t *testing.T) {
	e := newEngine()
	e.genericPool = pool.New("generic", 1, 0)

	block := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = pool.Run(context.Background(), e.genericPool, func(ctx context.Context) (int, error) {
			close(block)
			<-release
			return 0, nil
		})
	}()
	<-block
	defer close(release)

	req := &models.ScrapeRequest{URL: "https://example.com", Mode: models.ModeStatic}
	_, err := e.Scrape(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.Overloaded, apperr.KindOf(err))
}

func TestClassifyErr_MapsContextErrors(t *testing.T) {
	assert.Equal(t, apperr.Timeout, apperr.KindOf(classifyErr(context.DeadlineExceeded, "msg", apperr.Internal)))
	assert.Equal(t, apperr.Cancelled, apperr.KindOf(classifyErr(context.Canceled, "msg", apperr.Internal)))
}

func TestClassifyErr_PreservesExistingAppErrKind(t *testing.T) {
	original := apperr.New(apperr.ResponseTooLarge, "too big", nil)
	got := classifyErr(original, "msg", apperr.Internal)
	assert.Equal(t, apperr.ResponseTooLarge, apperr.KindOf(got))
}

func TestClassifyErr_FallsBackToCallerKind(t *testing.T) {
	got := classifyErr(errors.New("boom"), "msg", apperr.Browser)
	assert.Equal(t, apperr.Browser, apperr.KindOf(got))
}

func TestClassifyErr_NilReturnsNil(t *testing.T) {
	assert.NoError(t, classifyErr(nil, "msg", apperr.Internal))
}

func TestStatusError_SatisfiesFingerprintStatusError(t *testing.T) {
	var se fingerprint.StatusError = &statusError{status: 429, msg: "rate limited"}
	assert.Equal(t, 429, se.StatusCode())
	assert.Equal(t, "rate limited", se.Error())
}

func TestPostProcess_EmptyBodyHasZeroReadTime(t *testing.T) {
	e := newEngine()
	res, err := e.postProcess(&models.ScrapeRequest{URL: "https://example.com", RawBody: true}, extractor.Article{Content: "   "})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Meta.ReadTimeMin)
}

func longParagraph() string {
	s := ""
	for i := 0; i < 40; i++ {
		s += "word "
	}
	return s
}
