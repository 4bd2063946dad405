// Package resolver links an incoming fact set to an existing place, or mints
// a new place id when no candidate is convincing enough.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

type snapshotFinder interface {
	FindMatching(ctx context.Context, q domain.MatchQuery) ([]domain.Snapshot, error)
}

type changesetFinder interface {
	FindMatching(ctx context.Context, q domain.MatchQuery) ([]domain.Changeset, error)
}

type decisionReader interface {
	ListByChangesets(ctx context.Context, changesetIDs []uuid.UUID) ([]domain.DecisionEdge, error)
}

// Service resolves fact sets to place ids. It only reads.
type Service struct {
	snapshots  snapshotFinder
	changesets changesetFinder
	decisions  decisionReader
	weights    Weights
	limit      int
	newID      func() (uuid.UUID, error)
	tracer     trace.Tracer
	log        *slog.Logger
}

// NewService creates a resolver. limit caps the candidates fetched per
// criterion group and store.
func NewService(
	log *slog.Logger,
	snapshots snapshotFinder,
	changesets changesetFinder,
	decisions decisionReader,
	weights Weights,
	limit int,
) *Service {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	return &Service{
		snapshots:  snapshots,
		changesets: changesets,
		decisions:  decisions,
		weights:    weights,
		limit:      limit,
		newID:      uuid.NewV7,
		tracer:     otel.Tracer("github.com/heartmarshall/gazetteer-backend/internal/service/resolver"),
		log:        log.With("service", "resolver"),
	}
}

// candidate is one scored place.
type candidate struct {
	id       uuid.UUID
	score    int
	criteria []string
	modified time.Time
}

// better orders by score, then most recently modified, then smaller id.
func (c candidate) better(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	if !c.modified.Equal(o.modified) {
		return c.modified.After(o.modified)
	}
	return bytes.Compare(c.id[:], o.id[:]) < 0
}

// Resolve returns the id of the best matching place. Approved snapshots are
// searched first; when none qualifies, ledger facts that moderation has not
// rejected are merged per place and scored. Ambiguity is never an error:
// without a qualifying candidate a fresh id is returned. Storage failures are
// returned as errors and are safe to retry.
func (s *Service) Resolve(ctx context.Context, facts domain.Tags) (res domain.Resolution, err error) {
	ctx, span := s.tracer.Start(ctx, "resolver.resolve", trace.WithAttributes(attribute.Int("facts", len(facts))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("source", res.Source),
				attribute.Int("score", res.Score),
			)
		}
		span.End()
	}()

	queries := matchQueries(facts, s.weights.GeoTolerance, s.limit)
	if len(queries) == 0 {
		return s.mint(ctx)
	}

	snaps, err := s.snapshotCandidates(ctx, queries)
	if err != nil {
		return domain.Resolution{}, err
	}
	best, ok := s.pick(facts, snaps)
	if ok {
		return s.matched(ctx, best, domain.SourceSnapshot), nil
	}

	pending, err := s.ledgerCandidates(ctx, queries)
	if err != nil {
		return domain.Resolution{}, err
	}
	best, ok = s.pick(facts, pending)
	if ok {
		return s.matched(ctx, best, domain.SourceLedger), nil
	}

	return s.mint(ctx)
}

type tagged struct {
	id       uuid.UUID
	tags     domain.Tags
	modified time.Time
}

// snapshotCandidates unions the snapshots found by every query.
func (s *Service) snapshotCandidates(ctx context.Context, queries []domain.MatchQuery) ([]tagged, error) {
	seen := make(map[uuid.UUID]bool)
	var out []tagged
	for _, q := range queries {
		snaps, err := s.snapshots.FindMatching(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("find snapshot candidates: %w", err)
		}
		for _, sn := range snaps {
			if seen[sn.ID] {
				continue
			}
			seen[sn.ID] = true
			out = append(out, tagged{id: sn.ID, tags: sn.Tags, modified: sn.UpdatedAt})
		}
	}
	return out, nil
}

// ledgerCandidates unions the place histories found by every query and merges
// each place latest-per-key. Rejected or deleted changesets and rejected keys
// are left out; pending and approved facts count.
func (s *Service) ledgerCandidates(ctx context.Context, queries []domain.MatchQuery) ([]tagged, error) {
	seen := make(map[uuid.UUID]bool)
	var changesets []domain.Changeset
	for _, q := range queries {
		found, err := s.changesets.FindMatching(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("find ledger candidates: %w", err)
		}
		for _, cs := range found {
			if !seen[cs.ID] {
				seen[cs.ID] = true
				changesets = append(changesets, cs)
			}
		}
	}
	if len(changesets) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(changesets))
	for i, cs := range changesets {
		ids[i] = cs.ID
	}
	edges, err := s.decisions.ListByChangesets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ledger candidate decisions: %w", err)
	}
	return mergeLedger(changesets, edges), nil
}

// mergeLedger folds changesets per place in (created_at, id) order, skipping
// facts that moderation has rejected.
func mergeLedger(changesets []domain.Changeset, edges []domain.DecisionEdge) []tagged {
	byChangeset := make(map[uuid.UUID][]domain.DecisionEdge)
	for _, e := range edges {
		byChangeset[e.TargetChangeset] = append(byChangeset[e.TargetChangeset], e)
	}

	slices.SortStableFunc(changesets, func(a, b domain.Changeset) int {
		if c := bytes.Compare(a.ForEntity[:], b.ForEntity[:]); c != 0 {
			return c
		}
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	index := make(map[uuid.UUID]int)
	var out []tagged
	for _, cs := range changesets {
		own := byChangeset[cs.ID]
		switch domain.EffectiveDocDecision(own, cs.ID) {
		case domain.DecisionRejected, domain.DecisionDeleted:
			continue
		}
		i, ok := index[cs.ForEntity]
		if !ok {
			i = len(out)
			index[cs.ForEntity] = i
			out = append(out, tagged{id: cs.ForEntity, tags: make(domain.Tags)})
		}
		for k, v := range cs.Tags {
			if domain.EffectiveTagDecision(own, cs.ID, k) == domain.DecisionRejectedTag {
				continue
			}
			out[i].tags[k] = v
		}
		if cs.CreatedAt.After(out[i].modified) {
			out[i].modified = cs.CreatedAt
		}
	}
	return out
}

func (s *Service) pick(facts domain.Tags, cands []tagged) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	for _, c := range cands {
		score, criteria := Score(s.weights, facts, c.tags)
		if score < s.weights.Floor {
			continue
		}
		cur := candidate{id: c.id, score: score, criteria: criteria, modified: c.modified}
		if !found || cur.better(best) {
			best, found = cur, true
		}
	}
	return best, found
}

func (s *Service) matched(ctx context.Context, c candidate, source string) domain.Resolution {
	s.log.DebugContext(ctx, "fact set matched",
		slog.String("entity_id", c.id.String()),
		slog.Int("score", c.score),
		slog.Any("criteria", c.criteria),
		slog.String("source", source),
	)
	return domain.Resolution{
		EntityID: c.id,
		Matched:  true,
		Score:    c.score,
		Criteria: c.criteria,
		Source:   source,
	}
}

func (s *Service) mint(ctx context.Context) (domain.Resolution, error) {
	id, err := s.newID()
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("mint entity id: %w", err)
	}
	s.log.DebugContext(ctx, "no qualifying candidate, minted new entity", slog.String("entity_id", id.String()))
	return domain.Resolution{EntityID: id, Source: domain.SourceNew}, nil
}
