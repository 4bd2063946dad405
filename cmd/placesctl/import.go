package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/gazetteer-backend/internal/app/importer"
)

func newImportCmd() *cobra.Command {
	var (
		configPath string
		approve    bool
		dryRun     bool
		batchSize  int
		reviewer   string
	)

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-submit changesets from a YAML file",
		Long:  "Submits every changeset in the file through the ledger, optionally approving each one, then recomputes the affected snapshots.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := importer.LoadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("approve") {
				cfg.Approve = approve
			}
			if flags.Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if flags.Changed("batch-size") {
				cfg.BatchSize = batchSize
			}
			if flags.Changed("reviewer") {
				cfg.Reviewer = reviewer
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			batch, err := importer.LoadBatch(f)
			if err != nil {
				return err
			}

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			res, runErr := importer.New(c.Log, c.Ledger, *cfg).Run(ctx, batch)
			fmt.Fprintf(out, "submitted %d, approved %d, resolved to existing %d, skipped %d in %s\n",
				res.Submitted, res.Approved, res.Resolved, len(res.Skipped), res.Duration)
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "  item %d: %v\n", s.Index, s.Err)
			}

			// The scheduler is not running here; drain it synchronously.
			if c.Scheduler.Len() > 0 {
				printBatch(out, c.Scheduler.Drain(ctx))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&configPath, "import-config", "", "path to import YAML config")
	cmd.Flags().BoolVar(&approve, "approve", false, "record an APPROVED decision for every imported changeset")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", 200, "items per progress batch")
	cmd.Flags().StringVar(&reviewer, "reviewer", "importer", "reviewer recorded on approvals")
	return cmd
}
