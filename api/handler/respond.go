// Package handler holds the Gin endpoint handlers for this service's
// routes (POST /page, POST /batch, GET /batch/:id, GET /health),
// generalized from the upstream api/handler package: the same
// "parse/validate -> call collaborator -> map error -> respond" shape as
// scrape.go, narrowed to a single error envelope instead of a
// per-endpoint ScrapeResponse/ErrorDetail pair.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/apperr"
	"github.com/pageharvest/pageharvest/models"
)

// envelope is the single error response shape:
// {"error": {"code", "message", "details"?}} with HTTP status == code.
type envelope struct {
	Error models.ErrorDetail `json:"error"`
}

// respondError classifies err via apperr, logs it at the level its
// severity warrants (5xx with the wrapped error, 4xx at warn only), and
// writes the error envelope.
func respondError(c *gin.Context, err error) {
	ae := apperr.As(err)
	status := apperr.HTTPStatus(ae.Kind)

	if status >= 500 {
		slog.Error("request failed", "path", c.FullPath(), "kind", ae.Kind, "error", ae.Err)
	} else {
		slog.Warn("request rejected", "path", c.FullPath(), "kind", ae.Kind, "message", ae.Message)
	}

	c.JSON(status, envelope{Error: models.ErrorDetail{
		Code:    status,
		Message: ae.Message,
		Details: ae.Details,
	}})
}

// respondValidation writes a 400 with every struct-tag violation joined
// into Details, for requests rejected before they reach a collaborator.
func respondValidation(c *gin.Context, violations []string) {
	details := ""
	for i, v := range violations {
		if i > 0 {
			details += "; "
		}
		details += v
	}
	c.JSON(http.StatusBadRequest, envelope{Error: models.ErrorDetail{
		Code:    http.StatusBadRequest,
		Message: "request failed validation",
		Details: details,
	}})
}
