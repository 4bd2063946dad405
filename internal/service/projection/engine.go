// Package projection folds the fact and moderation ledgers into per-place
// snapshots and schedules that work after ledger writes.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/gazetteer-backend/internal/config"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

type changesetReader interface {
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Changeset, error)
	ListEntityIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type decisionReader interface {
	ListByChangesets(ctx context.Context, changesetIDs []uuid.UUID) ([]domain.DecisionEdge, error)
}

type snapshotWriter interface {
	Replace(ctx context.Context, s domain.Snapshot) (domain.Snapshot, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type entityLocker interface {
	LockEntity(ctx context.Context, id uuid.UUID) error
}

type snapshotCache interface {
	Set(ctx context.Context, s domain.Snapshot) error
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

type snapshotIndexer interface {
	Index(ctx context.Context, snapshots ...domain.Snapshot) error
}

const tracerName = "github.com/heartmarshall/gazetteer-backend/internal/service/projection"

// Engine recomputes snapshots. It holds no ledger state between calls.
type Engine struct {
	changesets changesetReader
	decisions  decisionReader
	snapshots  snapshotWriter
	tx         txManager
	locker     entityLocker
	cache      snapshotCache
	indexer    snapshotIndexer
	cfg        config.ProjectionConfig
	locks      *keyedMutex
	now        func() time.Time
	tracer     trace.Tracer
	log        *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithCache writes each changed snapshot through to the cache. The cache
// must not let an older UpdatedAt replace a newer one.
func WithCache(c snapshotCache) Option { return func(e *Engine) { e.cache = c } }

// WithIndexer pushes changed snapshots to a search index.
func WithIndexer(i snapshotIndexer) Option { return func(e *Engine) { e.indexer = i } }

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates a projection engine.
func NewEngine(
	log *slog.Logger,
	changesets changesetReader,
	decisions decisionReader,
	snapshots snapshotWriter,
	tx txManager,
	locker entityLocker,
	cfg config.ProjectionConfig,
	opts ...Option,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	e := &Engine{
		changesets: changesets,
		decisions:  decisions,
		snapshots:  snapshots,
		tx:         tx,
		locker:     locker,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
		tracer:     otel.Tracer(tracerName),
		log:        log.With("service", "projection"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchResult summarises one Recompute call.
type BatchResult struct {
	Processed int
	Changed   []uuid.UUID
	Failed    map[uuid.UUID]error
	Duration  time.Duration
}

// Err joins the per-entity failures, or returns nil.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, fmt.Errorf("entity %s: %w", id, r.Failed[id]))
	}
	return errors.Join(errs...)
}

func (r *BatchResult) merge(o BatchResult) {
	r.Processed += o.Processed
	r.Changed = append(r.Changed, o.Changed...)
	for id, err := range o.Failed {
		if r.Failed == nil {
			r.Failed = make(map[uuid.UUID]error)
		}
		r.Failed[id] = err
	}
}

// Recompute rebuilds the snapshot of every given entity. Entities are
// processed independently and in parallel; a failure is recorded in the
// result and never affects the others. Calling it again with no ledger
// writes in between leaves every snapshot unchanged.
func (e *Engine) Recompute(ctx context.Context, ids ...uuid.UUID) BatchResult {
	start := time.Now()
	ids = dedupe(ids)

	var (
		mu  sync.Mutex
		res = BatchResult{Processed: len(ids)}
		g   errgroup.Group
	)
	g.SetLimit(e.cfg.Workers)

	for _, id := range ids {
		g.Go(func() error {
			changed, err := e.recomputeOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if res.Failed == nil {
					res.Failed = make(map[uuid.UUID]error)
				}
				res.Failed[id] = err
			case changed:
				res.Changed = append(res.Changed, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Duration = time.Since(start)
	if len(res.Failed) > 0 {
		e.log.WarnContext(ctx, "recompute finished with failures",
			slog.Int("processed", res.Processed),
			slog.Int("changed", len(res.Changed)),
			slog.Int("failed", len(res.Failed)),
		)
	} else {
		e.log.DebugContext(ctx, "recompute finished",
			slog.Int("processed", res.Processed),
			slog.Int("changed", len(res.Changed)),
			slog.Duration("duration", res.Duration),
		)
	}
	return res
}

// RecomputeAll pages over every entity that has at least one changeset and
// recomputes it. It fails only when the entity listing itself fails.
func (e *Engine) RecomputeAll(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	var (
		total BatchResult
		after uuid.UUID
	)
	for {
		ids, err := e.changesets.ListEntityIDs(ctx, after, e.cfg.PageSize)
		if err != nil {
			total.Duration = time.Since(start)
			return total, fmt.Errorf("list entity ids: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		total.merge(e.Recompute(ctx, ids...))
		e.log.InfoContext(ctx, "rebuild progress",
			slog.Int("processed", total.Processed),
			slog.Int("failed", len(total.Failed)),
		)
		if len(ids) < e.cfg.PageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	total.Duration = time.Since(start)
	return total, nil
}

// recomputeOne rebuilds one snapshot under the entity's in-process and
// database locks. It reports whether the stored tags changed.
func (e *Engine) recomputeOne(ctx context.Context, id uuid.UUID) (changed bool, err error) {
	if e.cfg.EntityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.EntityTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "projection.recompute",
		trace.WithAttributes(attribute.String("entity_id", id.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := e.locks.Lock(id)
	defer unlock()

	// Postgres keeps microseconds; truncating lets UpdatedAt round-trip exactly.
	now := e.now().UTC().Truncate(time.Microsecond)

	var stored domain.Snapshot
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.locker.LockEntity(ctx, id); err != nil {
			return err
		}

		changesets, err := e.changesets.ListByEntity(ctx, id)
		if err != nil {
			return fmt.Errorf("list changesets: %w", err)
		}

		var edges []domain.DecisionEdge
		if len(changesets) > 0 {
			csIDs := make([]uuid.UUID, len(changesets))
			for i, cs := range changesets {
				csIDs[i] = cs.ID
			}
			edges, err = e.decisions.ListByChangesets(ctx, csIDs)
			if err != nil {
				return fmt.Errorf("list decisions: %w", err)
			}
		}

		tags, invalid := Project(changesets, edges)
		for _, edge := range invalid {
			e.log.WarnContext(ctx, "skipping malformed decision edge",
				slog.String("entity_id", id.String()),
				slog.String("edge_id", edge.ID.String()),
				slog.String("kind", edge.Kind.String()),
				slog.String("target_key", edge.TargetKey),
			)
		}

		stored, err = e.snapshots.Replace(ctx, domain.Snapshot{ID: id, Tags: tags, UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("replace snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	changed = stored.UpdatedAt.Equal(now)
	span.SetAttributes(attribute.Bool("changed", changed), attribute.Int("tags", len(stored.Tags)))
	if changed {
		e.afterWrite(ctx, stored)
	}
	return changed, nil
}

// afterWrite refreshes the derived read models. Failures are logged only;
// the snapshot row is already the source of truth.
func (e *Engine) afterWrite(ctx context.Context, s domain.Snapshot) {
	if e.cache != nil {
		if err := e.cache.Set(ctx, s); err != nil {
			e.log.WarnContext(ctx, "snapshot cache write failed",
				slog.String("entity_id", s.ID.String()),
				slog.String("error", err.Error()),
			)
			if err := e.cache.Invalidate(ctx, s.ID); err != nil {
				e.log.WarnContext(ctx, "snapshot cache invalidation failed",
					slog.String("entity_id", s.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if e.indexer != nil {
		if err := e.indexer.Index(ctx, s); err != nil {
			e.log.WarnContext(ctx, "snapshot indexing failed",
				slog.String("entity_id", s.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
