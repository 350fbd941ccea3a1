// Package server wires every pageharvest collaborator (worker pools,
// browser driver, scrape engine, batch manager, cleanup scheduler, HTTP
// router) into a running instance and owns its graceful shutdown. It is
// shared by cmd/pageharvestd (the standalone daemon) and
// cmd/pageharvestctl's serve subcommand so the wiring sequence and the
// signal-driven drain exist in exactly one place. It is adapted from
// cmd/purify/main.go's numbered wiring comments and its
// initLogger/graceful-shutdown block, generalized to this service's extra
// collaborators (batch manager, cleanup scheduler, shutdown coordinator)
// and to a configurable close deadline instead of a fixed 5s one.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pageharvest/pageharvest/api"
	"github.com/pageharvest/pageharvest/batch"
	"github.com/pageharvest/pageharvest/browserdriver"
	"github.com/pageharvest/pageharvest/cleanup"
	"github.com/pageharvest/pageharvest/config"
	"github.com/pageharvest/pageharvest/extractor"
	"github.com/pageharvest/pageharvest/fetch"
	"github.com/pageharvest/pageharvest/fingerprint"
	"github.com/pageharvest/pageharvest/markdown"
	"github.com/pageharvest/pageharvest/memstore"
	"github.com/pageharvest/pageharvest/models"
	"github.com/pageharvest/pageharvest/pool"
	"github.com/pageharvest/pageharvest/scrapeengine"
	"github.com/pageharvest/pageharvest/shutdown"
	"github.com/pageharvest/pageharvest/webhookdispatch"
)

// InitLogger configures the default slog logger based on cfg. Both
// entrypoint binaries call this immediately after loading configuration.
func InitLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Run wires every component from cfg, serves HTTP until a shutdown
// signal is received or the server fails fatally, then drains in-flight
// requests bounded by cfg.Shutdown.CloseTimeout and shuts down the batch
// manager; the batch manager's shutdown is not bounded by that deadline.
func Run(cfg *config.Config) error {
	genericPool := pool.New("generic", cfg.Pool.MaxConcurrency, cfg.Pool.MaxQueue)
	browserPool := pool.New("browser", cfg.Pool.MaxBrowserConcurrency, cfg.Pool.MaxBrowserQueue)

	driver, err := browserdriver.New(browserdriver.Config{
		Headless:   cfg.Browser.Headless,
		NoSandbox:  cfg.Browser.NoSandbox,
		BrowserBin: cfg.Browser.BrowserBin,
		MaxPages:   cfg.Browser.MaxPages,
	})
	if err != nil {
		return fmt.Errorf("launch browser driver: %w", err)
	}
	defer driver.Close()

	ext := extractor.New(&fetch.Client{})
	md := markdown.New()

	engine := scrapeengine.New(genericPool, browserPool, driver, ext, md, scrapeengine.Config{
		DefaultMode:  models.Mode(cfg.Defaults.Mode),
		NavTimeout:   cfg.Defaults.NavTimeout,
		MaxBodyBytes: fetch.DefaultMaxBodySize,
		FingerprintDefaults: fingerprint.Defaults{
			Generate:            cfg.Defaults.FingerprintGenerate,
			UserAgent:           cfg.Defaults.FingerprintUserAgent,
			Locale:              cfg.Defaults.FingerprintLocale,
			TimezoneID:          cfg.Defaults.FingerprintTimezoneID,
			BlockTrackers:       cfg.Defaults.BlockTrackers,
			BlockHeavyResources: cfg.Defaults.BlockHeavyResources,
		},
		RotateOnAntiBotDefault: cfg.Defaults.FingerprintRotateOnBot,
	})

	webhook := webhookdispatch.New(
		time.Duration(cfg.Webhook.TimeoutMs)*time.Millisecond,
		cfg.Webhook.MaxAttempts,
		cfg.Webhook.BackoffMs,
	)

	store := memstore.New()
	batchMgr := batch.New(engine, webhook, clock.New(), batch.Config{
		Concurrency: cfg.Batch.Concurrency,
	})
	cleaner := cleanup.New(clock.New(), store, batchMgr, cleanup.Config{
		Interval:     cfg.Cleanup.Interval,
		MinInterval:  cfg.Cleanup.MinInterval,
		DataLifetime: cfg.Cleanup.DataLifetime,
	})
	cleaner.Start()
	defer cleaner.Stop()

	coord := shutdown.New()
	startTime := time.Now()
	router := api.NewRouter(engine, batchMgr, store, genericPool, browserPool, coord, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenHost, cfg.Server.ListenPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	coord.MarkDraining()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.CloseTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if err := coord.AwaitDrain(ctx); err != nil {
		slog.Warn("in-flight requests did not drain before deadline", "error", err)
	}

	batchMgr.Shutdown()
	slog.Info("batch manager shut down")

	return nil
}
