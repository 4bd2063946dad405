// Command placesctl is the maintenance CLI for the gazetteer: migrations,
// projection rebuilds, bulk imports and ledger inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/gazetteer-backend/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// configPath is bound to the --config persistent flag.
var configPath string

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "placesctl",
		Short:         "Maintenance tool for the crowd-sourced place gazetteer",
		Version:       app.BuildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(
		newMigrateCmd(),
		newRebuildCmd(),
		newRecomputeCmd(),
		newResolveCmd(),
		newImportCmd(),
		newHistoryCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
