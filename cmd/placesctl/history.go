package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <entity-id>",
		Short: "List every changeset of a place with its moderation state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entity id %q: %w", args[0], err)
			}

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			statuses, err := c.Ledger.History(ctx, id)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANGESET\tCREATED\tAUTHOR\tDECISION\tVISIBLE KEYS")
			for _, st := range statuses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					st.Changeset.ID,
					st.Changeset.CreatedAt.Format("2006-01-02 15:04:05"),
					st.Changeset.AuthorTag,
					st.Decision,
					strings.Join(st.Visible, ","),
				)
			}
			return tw.Flush()
		},
	}
}
