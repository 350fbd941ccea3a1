// Command pageharvestctl is the operator CLI for pageharvest: "serve"
// launches the HTTP server (same wiring as cmd/pageharvestd, exposed here
// so operators have a single binary with flag overrides) and "loadtest"
// drives a running instance with repeated POST /page calls and reports
// latency/success statistics. It is grounded in
// IshaanNene-ScrapeGoat-And-ArchEnemy's cmd/webstalk/main.go cobra
// root-command-with-subcommands shape (persistent --verbose flag,
// per-command flag structs, a RunE per subcommand) and
// scripts/benchmark/main.go (test-URL table, per-URL averaging,
// text/tabwriter summary, JSON report file) adapted from a flag-parsed
// standalone script into a loadtest subcommand against this service's
// actual /api/v1/page endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "pageharvestctl",
		Short: "pageharvestctl — operate and load-test a pageharvest server",
		Long: `pageharvestctl is the operator CLI for pageharvest.

Commands:
  serve      run the HTTP server in this process
  loadtest   drive a running server with repeated scrape requests and report latency/success stats`,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loadtestCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd prints the CLI's version string.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pageharvestctl dev")
		},
	}
}
