// Package middleware holds the Gin middleware chain generalized from the
// upstream api/middleware package: auth and rate-limit are dropped (this
// service deliberately has no authenticated API), and a new ShutdownGate
// middleware takes their place as the admission-side half of the
// shutdown coordinator.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/shutdown"
)

// ShutdownGate rejects every request with 503 once the coordinator is
// draining, and otherwise registers the request against the coordinator's
// active-request counter for the duration of the handler chain.
func ShutdownGate(coord *shutdown.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if coord.IsDraining() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": models.ErrorDetail{
					Code:    http.StatusServiceUnavailable,
					Message: "Service shutting down",
				},
			})
			return
		}

		coord.Inc()
		defer coord.Dec()
		c.Next()
	}
}
