package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

func newResolveCmd() *cobra.Command {
	var pairs []string

	cmd := &cobra.Command{
		Use:   "resolve --tag key=value...",
		Short: "Show which place a set of facts would be attached to",
		Long:  "Runs entity resolution without writing anything. Values are parsed as YAML scalars, so --tag lat=52.5 is a number and --tag name=\"'42'\" a string.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			facts, err := parseTagFlags(pairs)
			if err != nil {
				return err
			}

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Resolver.Resolve(ctx, facts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"entityId": res.EntityID,
				"matched":  res.Matched,
				"score":    res.Score,
				"criteria": res.Criteria,
				"source":   res.Source,
			})
		},
	}

	cmd.Flags().StringArrayVarP(&pairs, "tag", "t", nil, "fact as key=value (repeatable)")
	return cmd
}

// parseTagFlags turns key=value pairs into tags, decoding each value as a
// YAML scalar.
func parseTagFlags(pairs []string) (domain.Tags, error) {
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid tag %q, want key=value", p)
		}
		var val any
		if err := yaml.Unmarshal([]byte(v), &val); err != nil || val == nil {
			val = v
		}
		raw[strings.TrimSpace(k)] = val
	}
	return domain.TagsFromMap(raw)
}
