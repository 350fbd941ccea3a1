// Command pageharvestd is the pageharvest HTTP server. It loads
// configuration, initializes logging, and hands off to package server
// for wiring and graceful shutdown, mirroring cmd/purify/main.go's
// entrypoint shape.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pageharvest/pageharvest/config"
	"github.com/pageharvest/pageharvest/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pageharvestd: load config:", err)
		os.Exit(1)
	}

	server.InitLogger(cfg.Log)
	slog.Info("pageharvestd starting",
		"host", cfg.Server.ListenHost,
		"port", cfg.Server.ListenPort,
		"mode", cfg.Defaults.Mode,
		"maxBrowserConcurrency", cfg.Pool.MaxBrowserConcurrency,
	)

	if err := server.Run(cfg); err != nil {
		slog.Error("pageharvestd exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("pageharvestd stopped")
}
