// Package snapshot implements the overwrite-only Snapshot Store on PostgreSQL.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Repo provides snapshot persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new snapshot repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

// replaceSQL overwrites the whole row. updated_at only moves when the tags
// actually change, so recomputing an unchanged entity is a no-op.
const replaceSQL = `
INSERT INTO snapshots (id, tags, lat, lng, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    tags       = EXCLUDED.tags,
    lat        = EXCLUDED.lat,
    lng        = EXCLUDED.lng,
    updated_at = CASE WHEN snapshots.tags = EXCLUDED.tags
                      THEN snapshots.updated_at
                      ELSE EXCLUDED.updated_at END
RETURNING updated_at`

const getSQL = `SELECT id, tags, updated_at FROM snapshots WHERE id = $1`

const getByIDsSQL = `SELECT id, tags, updated_at FROM snapshots WHERE id = ANY($1::uuid[])`

const listIDsSQL = `
SELECT id FROM snapshots
WHERE id > $1
ORDER BY id
LIMIT $2`

type row struct {
	ID        uuid.UUID `db:"id"`
	Tags      []byte    `db:"tags"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r row) toDomain() (domain.Snapshot, error) {
	tags := domain.Tags{}
	if err := json.Unmarshal(r.Tags, &tags); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode tags of snapshot %s: %w", r.ID, err)
	}
	return domain.Snapshot{ID: r.ID, Tags: tags, UpdatedAt: r.UpdatedAt.UTC()}, nil
}

func toDomain(rows []row) ([]domain.Snapshot, error) {
	out := make([]domain.Snapshot, 0, len(rows))
	for _, r := range rows {
		s, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write
// ---------------------------------------------------------------------------

// Replace overwrites the snapshot of s.ID wholesale and returns the stored row.
// An empty tag set is stored as an empty object, never as a deletion.
func (r *Repo) Replace(ctx context.Context, s domain.Snapshot) (domain.Snapshot, error) {
	if s.Tags == nil {
		s.Tags = domain.Tags{}
	}
	raw, err := json.Marshal(s.Tags)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("encode tags: %w", err)
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	lat, lng := postgres.Coordinates(s.Tags)

	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := q.QueryRow(ctx, replaceSQL, s.ID, raw, lat, lng, s.UpdatedAt).Scan(&s.UpdatedAt); err != nil {
		return domain.Snapshot{}, fmt.Errorf("replace snapshot: %w", postgres.MapError(err, "snapshot", s.ID.String()))
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// ---------------------------------------------------------------------------
// Read
// ---------------------------------------------------------------------------

// Get returns the snapshot of one entity or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &dst, getSQL, id); err != nil {
		return nil, postgres.MapError(err, "snapshot", id.String())
	}
	s, err := dst.toDomain()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByIDs returns the snapshots that exist among ids, in no particular order.
func (r *Repo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error) {
	if len(ids) == 0 {
		return []domain.Snapshot{}, nil
	}
	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, getByIDsSQL, ids); err != nil {
		return nil, fmt.Errorf("get snapshots by ids: %w", postgres.MapError(err, "snapshot", ""))
	}
	return toDomain(rows)
}

// ListIDs pages through snapshot ids in ascending order after the given id.
func (r *Repo) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &ids, listIDsSQL, after, limit); err != nil {
		return nil, fmt.Errorf("list snapshot ids: %w", postgres.MapError(err, "snapshot", ""))
	}
	return ids, nil
}

// FindMatching returns snapshots satisfying q, most recently updated first.
func (r *Repo) FindMatching(ctx context.Context, q domain.MatchQuery) ([]domain.Snapshot, error) {
	if q.Empty() {
		return []domain.Snapshot{}, nil
	}

	pred, err := postgres.MatchPredicate(q)
	if err != nil {
		return nil, err
	}

	query := postgres.Builder.
		Select("id", "tags", "updated_at").
		From("snapshots").
		Where(pred).
		OrderBy("updated_at DESC", "id")
	if q.Limit > 0 {
		query = query.Limit(uint64(q.Limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot match query: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("find matching snapshots: %w", postgres.MapError(err, "snapshot", ""))
	}
	return toDomain(rows)
}
