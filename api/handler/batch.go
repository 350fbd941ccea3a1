package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/models"
)

// BatchManager is the subset of batch.Manager the handlers need.
type BatchManager interface {
	Create(req models.BatchRequest) (string, error)
	GetStatus(id string) (models.BatchStatusProjection, error)
}

// PostBatch returns the handler for POST /batch: validate and hand the
// request to the Batch Job Manager, which owns both validation (batch
// items need the same struct-tag checks as a single ScrapeRequest, applied
// per item) and async execution. Mirrors handler.PostBatch
// shape (parse -> delegate -> 200 with an id) minus its own semaphore/
// WaitGroup fan-out, which now lives entirely inside batch.Manager.
func PostBatch(mgr BatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, []string{err.Error()})
			return
		}

		id, err := mgr.Create(req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"job_id": id, "status": models.BatchQueued})
	}
}

// GetBatch returns the handler for GET /batch/:id.
func GetBatch(mgr BatchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		proj, err := mgr.GetStatus(id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, proj)
	}
}
