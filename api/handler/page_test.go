package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/memstore"
	"github.com/pageharvest/pageharvest/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScrapeRunner struct {
	result *models.ScrapeResult
	err    error
}

func (f *fakeScrapeRunner) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	return f.result, f.err
}

func doPageRequest(t *testing.T, runner ScrapeRunner, body any) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/page", Page(runner, memstore.New()))

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/page", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPage_HappyPathReturnsScrapeResult(t *testing.T) {
	runner := &fakeScrapeRunner{result: &models.ScrapeResult{URL: "https://example.com", Body: "hello"}}
	rec := doPageRequest(t, runner, models.ScrapeRequest{URL: "https://example.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.ScrapeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "hello", got.Body)
}

func TestPage_HappyPathCachesResultInStore(t *testing.T) {
	runner := &fakeScrapeRunner{result: &models.ScrapeResult{URL: "https://example.com", Body: "hello"}}
	store := memstore.New()

	r := gin.New()
	r.POST("/page", Page(runner, store))
	payload, err := json.Marshal(models.ScrapeRequest{URL: "https://example.com"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/page", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.Len())
}

func TestPage_MissingURLFailsValidation(t *testing.T) {
	runner := &fakeScrapeRunner{}
	rec := doPageRequest(t, runner, models.ScrapeRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPage_SSRFRejectedURLReturns400(t *testing.T) {
	runner := &fakeScrapeRunner{}
	rec := doPageRequest(t, runner, models.ScrapeRequest{URL: "http://127.0.0.1/admin"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPage_EngineErrorMapsToEnvelope(t *testing.T) {
	runner := &fakeScrapeRunner{err: apperr.New(apperr.Overloaded, "generic pool is overloaded", nil)}
	rec := doPageRequest(t, runner, models.ScrapeRequest{URL: "https://example.com"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusServiceUnavailable, env.Error.Code)
}
