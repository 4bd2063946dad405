// Package importer bulk-loads changesets from YAML files into the fact
// ledger, optionally approving each one. It is intended to be run offline
// through placesctl, not as part of the server.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/internal/service/ledger"
)

type ledgerService interface {
	SubmitChangeset(ctx context.Context, input ledger.SubmitChangesetInput) (*ledger.SubmitResult, error)
	RecordDecision(ctx context.Context, input ledger.RecordDecisionInput) (domain.DecisionEdge, error)
}

// ItemError records why one batch item was skipped.
type ItemError struct {
	Index int
	Err   error
}

// Result summarises an import run.
type Result struct {
	Submitted int
	Approved  int
	Resolved  int
	Skipped   []ItemError
	Duration  time.Duration
}

// Importer submits batch items through the ledger service.
type Importer struct {
	log    *slog.Logger
	ledger ledgerService
	cfg    Config
}

// New creates an Importer.
func New(log *slog.Logger, svc ledgerService, cfg Config) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Importer{log: log.With("component", "importer"), ledger: svc, cfg: cfg}
}

// Run submits every item in order. Items rejected by validation are skipped
// and reported; any other failure stops the run and is returned together
// with the partial result.
func (im *Importer) Run(ctx context.Context, b *Batch) (Result, error) {
	start := time.Now()
	var res Result

	_, err := batchProcess(b.Changesets, im.cfg.BatchSize, func(offset int, items []Item) (int, error) {
		for i, it := range items {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if err := im.one(ctx, offset+i, it, &res); err != nil {
				return 0, err
			}
		}
		im.log.InfoContext(ctx, "batch imported",
			slog.Int("offset", offset),
			slog.Int("size", len(items)),
			slog.Int("submitted", res.Submitted),
			slog.Int("skipped", len(res.Skipped)),
		)
		return len(items), nil
	})
	res.Duration = time.Since(start)
	return res, err
}

func (im *Importer) one(ctx context.Context, idx int, it Item, res *Result) error {
	in, err := it.input()
	if err == nil {
		if im.cfg.DryRun {
			err = in.Validate()
		} else {
			err = im.submit(ctx, it, in, res)
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation):
		im.log.WarnContext(ctx, "item skipped", slog.Int("index", idx), slog.String("error", err.Error()))
		res.Skipped = append(res.Skipped, ItemError{Index: idx, Err: err})
		return nil
	default:
		return fmt.Errorf("item %d: %w", idx, err)
	}
}

func (im *Importer) submit(ctx context.Context, it Item, in ledger.SubmitChangesetInput, res *Result) error {
	out, err := im.ledger.SubmitChangeset(ctx, in)
	if err != nil {
		return err
	}
	res.Submitted++
	if out.Resolution != nil && out.Resolution.Matched {
		res.Resolved++
	}

	approve := im.cfg.Approve
	if it.Approve != nil {
		approve = *it.Approve
	}
	if !approve {
		return nil
	}
	if _, err := im.ledger.RecordDecision(ctx, ledger.RecordDecisionInput{
		Kind:      domain.DecisionApproved,
		Changeset: out.Changeset.ID,
		Reviewer:  im.cfg.Reviewer,
	}); err != nil {
		return fmt.Errorf("approve %s: %w", out.Changeset.ID, err)
	}
	res.Approved++
	return nil
}

// batchProcess splits items into chunks and calls fn for each chunk with its
// offset. It stops at the first error.
func batchProcess[T any](items []T, batchSize int, fn func(offset int, batch []T) (int, error)) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	total := 0
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		n, err := fn(i, items[i:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
