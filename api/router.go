package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageharvest/pageharvest/api/handler"
	"github.com/pageharvest/pageharvest/api/middleware"
	"github.com/pageharvest/pageharvest/config"
	"github.com/pageharvest/pageharvest/memstore"
	"github.com/pageharvest/pageharvest/pool"
	"github.com/pageharvest/pageharvest/shutdown"
)

// NewRouter creates a configured Gin engine with this service's four
// routes.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     ShutdownGate
//
// Health endpoint is intentionally outside the shutdown gate so monitoring
// probes can always reach it, the same way Health stays outside the
// Auth/RateLimit group upstream. The Auth/RateLimit middleware has no
// home here: this service deliberately has no authenticated API.
func NewRouter(
	engine handler.ScrapeRunner,
	batchMgr handler.BatchManager,
	store *memstore.Store,
	genericPool, browserPool *pool.Pool,
	coord *shutdown.Coordinator,
	cfg *config.Config,
	startTime time.Time,
) *gin.Engine {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group(cfg.Server.BasePath + "/api/v1")

	v1.GET("/health", handler.Health(genericPool, browserPool, coord, startTime))

	protected := v1.Group("")
	protected.Use(middleware.ShutdownGate(coord))

	protected.POST("/page", handler.Page(engine, store))
	protected.POST("/batch", handler.PostBatch(batchMgr))
	protected.GET("/batch/:id", handler.GetBatch(batchMgr))

	return r
}
