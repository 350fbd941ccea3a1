package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/pool"
	"github.com/pageharvest/pageharvest/shutdown"
)

// HealthResponse is the body of GET /health. It reports pool utilization
// instead of a browser-page-count stat, since the admission gates here
// are the generic/browser pools rather than a single page pool.
type HealthResponse struct {
	Status         string       `json:"status"`
	Uptime         string       `json:"uptime"`
	ActiveRequests int64        `json:"active_requests"`
	Timestamp      time.Time    `json:"timestamp"`
	Pools          []pool.Stats `json:"pools"`
}

// Health returns the handler for GET /health. It is deliberately exempt
// from the shutdown gate: it always reports 200 while the process is up,
// flipping to 503/"shutting_down" once the coordinator is draining, so a
// load balancer can tell a draining instance apart from a dead one and
// stop sending it new traffic.
func Health(genericPool, browserPool *pool.Pool, coord *shutdown.Coordinator, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := HealthResponse{
			Status:         "ok",
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveRequests: coord.Active(),
			Timestamp:      time.Now(),
			Pools:          []pool.Stats{genericPool.Stats(), browserPool.Stats()},
		}

		if coord.IsDraining() {
			status = http.StatusServiceUnavailable
			body.Status = "shutting_down"
		}

		c.JSON(status, body)
	}
}
