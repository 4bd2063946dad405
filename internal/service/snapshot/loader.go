package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

const (
	maxBatch = 100
	wait     = 2 * time.Millisecond
)

// Loader batches snapshot loads issued close together into one query.
type Loader = dataloader.Loader[uuid.UUID, domain.Snapshot]

// NewLoader creates a loader. Loaders memoise results, so create one per
// request.
func (s *Service) NewLoader() *Loader {
	return dataloader.NewBatchedLoader(
		s.batch,
		dataloader.WithWait[uuid.UUID, domain.Snapshot](wait),
		dataloader.WithBatchCapacity[uuid.UUID, domain.Snapshot](maxBatch),
	)
}

// batch serves keys from the cache and loads the misses in one repo call.
func (s *Service) batch(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[domain.Snapshot] {
	found := make(map[uuid.UUID]domain.Snapshot, len(keys))
	var misses []uuid.UUID
	for _, id := range keys {
		if snap, ok := s.cached(ctx, id); ok {
			found[id] = snap
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		snaps, err := s.repo.GetByIDs(ctx, misses)
		if err != nil {
			return errorResults[domain.Snapshot](len(keys), err)
		}
		for _, snap := range snaps {
			found[snap.ID] = snap
			s.store(ctx, snap)
		}
	}

	results := make([]*dataloader.Result[domain.Snapshot], len(keys))
	for i, id := range keys {
		if snap, ok := found[id]; ok {
			results[i] = &dataloader.Result[domain.Snapshot]{Data: snap}
		} else {
			results[i] = &dataloader.Result[domain.Snapshot]{Error: fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)}
		}
	}
	return results
}

// errorResults creates n results all carrying the same error.
func errorResults[V any](n int, err error) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], n)
	for i := range results {
		results[i] = &dataloader.Result[V]{Error: err}
	}
	return results
}
