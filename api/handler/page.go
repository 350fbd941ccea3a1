package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/memstore"
	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/ssrf"
	"github.com/pageharvest/pageharvest/validate"
)

// ScrapeRunner is the subset of scrapeengine.Engine the page handler needs,
// narrowed the same way batch.ScrapeRunner is so the handler can be tested
// against a fake without standing up a real pool/driver/extractor.
type ScrapeRunner interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
}

// Page returns the handler for POST /page: validate, SSRF-check the URL,
// run a single scrape synchronously, cache the result in the page store,
// and return it.
//
// Mirrors handler.Scrape (parse -> scrape -> respond), minus
// the SSE/cleaner steps endpoint had: no streaming mode, and Markdown
// conversion happens inside scrapeengine rather than a separate cleaner.
func Page(engine ScrapeRunner, store *memstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, []string{err.Error()})
			return
		}

		if violations, err := validate.Struct(req); err != nil {
			respondValidation(c, violations)
			return
		}

		if _, err := ssrf.Validate(req.URL); err != nil {
			respondError(c, apperr.New(apperr.Validation, "url rejected", err))
			return
		}

		result, err := engine.Scrape(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		store.Put(req, *result)
		c.JSON(http.StatusOK, result)
	}
}
