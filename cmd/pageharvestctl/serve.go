package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pageharvest/pageharvest/config"
	"github.com/pageharvest/pageharvest/server"
)

var servePort int

// serveCmd creates the "serve" subcommand: same wiring as
// cmd/pageharvestd, with a --port override layered on top of the
// environment-sourced config.Config for quick local runs.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pageharvest HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().IntVar(&servePort, "port", 0, "override LISTEN_PORT for this run (0 = use config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.ListenPort = servePort
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	server.InitLogger(cfg.Log)
	slog.Info("pageharvestctl serve starting",
		"host", cfg.Server.ListenHost,
		"port", cfg.Server.ListenPort,
	)

	if err := server.Run(cfg); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "pageharvestctl serve stopped")
	return nil
}
