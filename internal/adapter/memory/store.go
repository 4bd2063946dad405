// Package memory provides in-process ledgers, a snapshot store and a snapshot
// cache with the same contracts as the PostgreSQL and Redis adapters. It backs
// service tests and dry-run imports.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Store holds both ledgers and the snapshot table.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	changesets []domain.Changeset
	byID       map[uuid.UUID]int
	edges      []domain.DecisionEdge
	snapshots  map[uuid.UUID]domain.Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		byID:      make(map[uuid.UUID]int),
		snapshots: make(map[uuid.UUID]domain.Snapshot),
	}
}

// Changesets returns the Fact Ledger view of the store.
func (s *Store) Changesets() *ChangesetRepo { return &ChangesetRepo{s: s} }

// Decisions returns the Moderation Ledger view of the store.
func (s *Store) Decisions() *DecisionRepo { return &DecisionRepo{s: s} }

// Snapshots returns the Snapshot Store view of the store.
func (s *Store) Snapshots() *SnapshotRepo { return &SnapshotRepo{s: s} }

func less(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// ---------------------------------------------------------------------------
// Fact Ledger
// ---------------------------------------------------------------------------

// ChangesetRepo is the in-memory Fact Ledger.
type ChangesetRepo struct{ s *Store }

func (r *ChangesetRepo) Append(_ context.Context, cs domain.Changeset) (domain.Changeset, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[cs.ID]; ok {
		return domain.Changeset{}, fmt.Errorf("changeset %s: %w", cs.ID, domain.ErrAlreadyExists)
	}
	if len(cs.Tags) == 0 {
		return domain.Changeset{}, fmt.Errorf("changeset %s: %w", cs.ID, domain.ErrValidation)
	}
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = s.now()
	}
	cs.Tags = cs.Tags.Clone()
	s.byID[cs.ID] = len(s.changesets)
	s.changesets = append(s.changesets, cs)
	return cs, nil
}

func (r *ChangesetRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Changeset, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("changeset %s: %w", id, domain.ErrNotFound)
	}
	cs := s.changesets[i]
	return &cs, nil
}

func (r *ChangesetRepo) ListByEntity(_ context.Context, entityID uuid.UUID) ([]domain.Changeset, error) {
	return r.filter(func(cs domain.Changeset) bool { return cs.ForEntity == entityID }), nil
}

func (r *ChangesetRepo) ListAll(_ context.Context) ([]domain.Changeset, error) {
	return r.filter(func(domain.Changeset) bool { return true }), nil
}

func (r *ChangesetRepo) ListEntityIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s := r.s
	s.mu.RLock()
	seen := make(map[uuid.UUID]struct{})
	for _, cs := range s.changesets {
		if less(after, cs.ForEntity) {
			seen[cs.ForEntity] = struct{}{}
		}
	}
	s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *ChangesetRepo) ListPending(_ context.Context, limit int) ([]domain.Changeset, error) {
	s := r.s
	s.mu.RLock()
	decided := make(map[uuid.UUID]bool)
	for _, e := range s.edges {
		if e.Kind.IsDocLevel() {
			decided[e.TargetChangeset] = true
		}
	}
	s.mu.RUnlock()

	out := r.filter(func(cs domain.Changeset) bool { return !decided[cs.ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ChangesetRepo) FindMatching(_ context.Context, q domain.MatchQuery) ([]domain.Changeset, error) {
	if q.Empty() {
		return []domain.Changeset{}, nil
	}

	all := r.filter(func(domain.Changeset) bool { return true })
	latest := make(map[uuid.UUID]domain.Changeset)
	for _, cs := range all {
		if q.Matches(cs.Tags) {
			if cur, ok := latest[cs.ForEntity]; !ok || cur.Less(cs) {
				latest[cs.ForEntity] = cs
			}
		}
	}
	ranked := make([]domain.Changeset, 0, len(latest))
	for _, cs := range latest {
		ranked = append(ranked, cs)
	}
	slices.SortFunc(ranked, func(a, b domain.Changeset) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ForEntity[:], b.ForEntity[:])
	})
	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	entities := make(map[uuid.UUID]bool, len(ranked))
	for _, cs := range ranked {
		entities[cs.ForEntity] = true
	}

	out := make([]domain.Changeset, 0)
	for _, cs := range all {
		if entities[cs.ForEntity] {
			out = append(out, cs)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Changeset) int {
		return bytes.Compare(a.ForEntity[:], b.ForEntity[:])
	})
	return out, nil
}

// filter returns matching changesets ordered by (created_at, id).
func (r *ChangesetRepo) filter(keep func(domain.Changeset) bool) []domain.Changeset {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Changeset, 0)
	for _, cs := range s.changesets {
		if keep(cs) {
			out = append(out, cs)
		}
	}
	slices.SortFunc(out, func(a, b domain.Changeset) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// ---------------------------------------------------------------------------
// Moderation Ledger
// ---------------------------------------------------------------------------

// DecisionRepo is the in-memory Moderation Ledger.
type DecisionRepo struct{ s *Store }

func (r *DecisionRepo) Append(_ context.Context, e domain.DecisionEdge) (domain.DecisionEdge, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[e.TargetChangeset]; !ok {
		return domain.DecisionEdge{}, fmt.Errorf("changeset %s: %w", e.TargetChangeset, domain.ErrNotFound)
	}
	for _, existing := range s.edges {
		if existing.ID == e.ID {
			return domain.DecisionEdge{}, fmt.Errorf("decision edge %s: %w", e.ID, domain.ErrAlreadyExists)
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.edges = append(s.edges, e)
	return e, nil
}

func (r *DecisionRepo) ListByChangeset(ctx context.Context, changesetID uuid.UUID) ([]domain.DecisionEdge, error) {
	return r.ListByChangesets(ctx, []uuid.UUID{changesetID})
}

func (r *DecisionRepo) ListByChangesets(_ context.Context, changesetIDs []uuid.UUID) ([]domain.DecisionEdge, error) {
	want := make(map[uuid.UUID]bool, len(changesetIDs))
	for _, id := range changesetIDs {
		want[id] = true
	}

	s := r.s
	s.mu.RLock()
	out := make([]domain.DecisionEdge, 0)
	for _, e := range s.edges {
		if want[e.TargetChangeset] {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.DecisionEdge) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// Snapshot Store
// ---------------------------------------------------------------------------

// SnapshotRepo is the in-memory Snapshot Store.
type SnapshotRepo struct{ s *Store }

func (r *SnapshotRepo) Replace(_ context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Tags == nil {
		snap.Tags = domain.Tags{}
	}
	snap.Tags = snap.Tags.Clone()
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}
	if cur, ok := s.snapshots[snap.ID]; ok && cur.Tags.Equal(snap.Tags) {
		snap.UpdatedAt = cur.UpdatedAt
	}
	s.snapshots[snap.ID] = snap
	return snap, nil
}

func (r *SnapshotRepo) Get(_ context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	snap.Tags = snap.Tags.Clone()
	return &snap, nil
}

func (r *SnapshotRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Snapshot, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := s.snapshots[id]; ok {
			snap.Tags = snap.Tags.Clone()
			out = append(out, snap)
		}
	}
	return out, nil
}

func (r *SnapshotRepo) ListIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s := r.s
	s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(s.snapshots))
	for id := range s.snapshots {
		if less(after, id) {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *SnapshotRepo) FindMatching(_ context.Context, q domain.MatchQuery) ([]domain.Snapshot, error) {
	if q.Empty() {
		return []domain.Snapshot{}, nil
	}

	s := r.s
	s.mu.RLock()
	out := make([]domain.Snapshot, 0)
	for _, snap := range s.snapshots {
		if q.Matches(snap.Tags) {
			snap.Tags = snap.Tags.Clone()
			out = append(out, snap)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Snapshot) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
