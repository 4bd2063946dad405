// Package snapshot is the read API over projected places. Downstream readers
// go through it and never touch the ledgers.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// MaxBatch caps the ids accepted by GetMany.
const MaxBatch = 500

type snapshotRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error)
}

type snapshotCache interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Snapshot, bool, error)
	Set(ctx context.Context, s domain.Snapshot) error
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

// Service serves snapshots through a read-through cache.
type Service struct {
	repo  snapshotRepo
	cache snapshotCache
	log   *slog.Logger
}

// NewService creates a snapshot read service.
func NewService(log *slog.Logger, repo snapshotRepo, cache snapshotCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.With("service", "snapshot"),
	}
}

// Get returns the snapshot of one place. A place that exists only in the
// ledger and was never projected yields domain.ErrNotFound; a projected
// place with nothing approved yields an empty tag set.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("id", "required")
	}

	if snap, ok := s.cached(ctx, id); ok {
		return &snap, nil
	}

	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	s.store(ctx, *snap)
	return snap, nil
}

// GetMany returns the snapshots that exist among ids, in request order.
// Unknown ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error) {
	if len(ids) > MaxBatch {
		return nil, domain.NewValidationError("ids", fmt.Sprintf("max %d ids", MaxBatch))
	}
	if len(ids) == 0 {
		return []domain.Snapshot{}, nil
	}

	loader := s.NewLoader()
	snaps, errs := loader.LoadMany(ctx, ids)()

	out := make([]domain.Snapshot, 0, len(ids))
	for i, snap := range snaps {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load snapshots: %w", errs[i])
		}
		out = append(out, snap)
	}
	return out, nil
}

// Invalidate drops cached copies of the given places.
func (s *Service) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	return s.cache.Invalidate(ctx, ids...)
}

func (s *Service) cached(ctx context.Context, id uuid.UUID) (domain.Snapshot, bool) {
	snap, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.WarnContext(ctx, "snapshot cache read failed",
			slog.String("entity_id", id.String()),
			slog.String("error", err.Error()),
		)
		return domain.Snapshot{}, false
	}
	return snap, ok
}

func (s *Service) store(ctx context.Context, snap domain.Snapshot) {
	if err := s.cache.Set(ctx, snap); err != nil {
		s.log.WarnContext(ctx, "snapshot cache write failed",
			slog.String("entity_id", snap.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
