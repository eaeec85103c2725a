// Command polarlayers builds the circum-Antarctic layer cache and serves it
// through a terminal viewer or an HTTP API.
//
// Usage:
//
//	polarlayers build
//	polarlayers serve --build
//	polarlayers view
//	polarlayers export habitat_importance --format png -o habitat.png
//	polarlayers ls
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree. Configuration comes from the
// environment; see internal/config.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "polarlayers",
		Short: "Build and display circum-Antarctic map layers",
		Long: `polarlayers reprojects gridded Southern Ocean datasets onto a south polar
stereographic base map, caches one styled layer per dataset, and serves the
cache through a terminal viewer or an HTTP API.

Configuration is read from environment variables (CACHE_DIR, MIRROR_DIR,
BATHYMETRY_SOURCE, KAFKA_BROKERS, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newBuildCmd(),
		newServeCmd(),
		newViewCmd(),
		newExportCmd(),
		newLsCmd(),
	)
	return root
}
