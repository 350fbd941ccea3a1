package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/pool"
	"github.com/pageharvest/pageharvest/shutdown"
)

func TestHealth_ReportsOkWhenNotDraining(t *testing.T) {
	coord := shutdown.New()
	r := gin.New()
	r.GET("/health", Health(pool.New("generic", 10, 50), pool.New("browser", 3, 20), coord, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	require.Len(t, got.Pools, 2)
}

func TestHealth_ReportsShuttingDownWhileDraining(t *testing.T) {
	coord := shutdown.New()
	coord.MarkDraining()
	r := gin.New()
	r.GET("/health", Health(pool.New("generic", 10, 50), pool.New("browser", 3, 20), coord, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "shutting_down", got.Status)
	assert.Equal(t, int64(0), got.ActiveRequests)
}
