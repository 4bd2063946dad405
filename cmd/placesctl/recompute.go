package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/gazetteer-backend/internal/service/projection"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the snapshot of every known place",
		Long:  "Walks every entity in the fact ledger and rebuilds its snapshot. Safe to run at any time; unchanged snapshots keep their timestamps.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Engine.RecomputeAll(ctx)
			printBatch(cmd.OutOrStdout(), res)
			if err != nil {
				return err
			}
			return res.Err()
		},
	}
}

func newRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <entity-id>...",
		Short: "Recompute the snapshots of the given places",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ids := make([]uuid.UUID, 0, len(args))
			for _, a := range args {
				id, err := uuid.Parse(a)
				if err != nil {
					return fmt.Errorf("invalid entity id %q: %w", a, err)
				}
				ids = append(ids, id)
			}

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.Engine.Recompute(ctx, ids...)
			printBatch(cmd.OutOrStdout(), res)
			return res.Err()
		},
	}
}

func printBatch(w io.Writer, res projection.BatchResult) {
	fmt.Fprintf(w, "processed %d, changed %d, failed %d in %s\n",
		res.Processed, len(res.Changed), len(res.Failed), res.Duration)
	for id, err := range res.Failed {
		fmt.Fprintf(w, "  %s: %v\n", id, err)
	}
}
