// Package changeset implements the append-only Fact Ledger on PostgreSQL.
// There is deliberately no update or delete path; the schema rejects both.
package changeset

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

// Repo provides changeset persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new changeset repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

const columns = `id, for_entity, tags, author_tag, is_automated, sources, comment, created_at`

const insertSQL = `
INSERT INTO changesets (id, for_entity, tags, author_tag, is_automated, sources, comment, lat, lng, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
RETURNING created_at`

const getByIDSQL = `SELECT ` + columns + ` FROM changesets WHERE id = $1`

const listByEntitySQL = `
SELECT ` + columns + `
FROM changesets
WHERE for_entity = $1
ORDER BY created_at, id`

const listAllSQL = `SELECT ` + columns + ` FROM changesets ORDER BY created_at, id`

const listEntityIDsSQL = `
SELECT DISTINCT for_entity
FROM changesets
WHERE for_entity > $1
ORDER BY for_entity
LIMIT $2`

const listPendingSQL = `
SELECT ` + columns + `
FROM changesets c
WHERE NOT EXISTS (
    SELECT 1 FROM decision_edges d
    WHERE d.target_changeset = c.id
      AND d.kind IN ('APPROVED', 'REJECTED', 'DELETED')
)
ORDER BY created_at, id
LIMIT $1`

type row struct {
	ID          uuid.UUID `db:"id"`
	ForEntity   uuid.UUID `db:"for_entity"`
	Tags        []byte    `db:"tags"`
	AuthorTag   string    `db:"author_tag"`
	IsAutomated bool      `db:"is_automated"`
	Sources     string    `db:"sources"`
	Comment     string    `db:"comment"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r row) toDomain() (domain.Changeset, error) {
	var tags domain.Tags
	if err := json.Unmarshal(r.Tags, &tags); err != nil {
		return domain.Changeset{}, fmt.Errorf("decode tags of changeset %s: %w", r.ID, err)
	}
	return domain.Changeset{
		ID:          r.ID,
		ForEntity:   r.ForEntity,
		Tags:        tags,
		AuthorTag:   r.AuthorTag,
		IsAutomated: r.IsAutomated,
		Sources:     r.Sources,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func toDomain(rows []row) ([]domain.Changeset, error) {
	out := make([]domain.Changeset, 0, len(rows))
	for _, r := range rows {
		cs, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append inserts a changeset. A zero CreatedAt is filled by the database clock.
// The returned changeset carries the stored timestamp.
func (r *Repo) Append(ctx context.Context, cs domain.Changeset) (domain.Changeset, error) {
	raw, err := json.Marshal(cs.Tags)
	if err != nil {
		return domain.Changeset{}, fmt.Errorf("encode tags: %w", err)
	}

	var createdAt *time.Time
	if !cs.CreatedAt.IsZero() {
		createdAt = &cs.CreatedAt
	}
	lat, lng := postgres.Coordinates(cs.Tags)

	q := postgres.QuerierFromCtx(ctx, r.db)
	err = q.QueryRow(ctx, insertSQL,
		cs.ID, cs.ForEntity, raw, cs.AuthorTag, cs.IsAutomated, cs.Sources, cs.Comment, lat, lng, createdAt,
	).Scan(&cs.CreatedAt)
	if err != nil {
		return domain.Changeset{}, fmt.Errorf("append changeset: %w", postgres.MapError(err, "changeset", cs.ID.String()))
	}

	cs.CreatedAt = cs.CreatedAt.UTC()
	return cs, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns one changeset or domain.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Changeset, error) {
	var dst row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &dst, getByIDSQL, id); err != nil {
		return nil, postgres.MapError(err, "changeset", id.String())
	}
	cs, err := dst.toDomain()
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// ListByEntity returns the entity's changesets ordered by (created_at, id).
func (r *Repo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Changeset, error) {
	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, listByEntitySQL, entityID); err != nil {
		return nil, fmt.Errorf("list changesets by entity: %w", postgres.MapError(err, "entity", entityID.String()))
	}
	return toDomain(rows)
}

// ListAll returns every changeset ordered by (created_at, id).
func (r *Repo) ListAll(ctx context.Context) ([]domain.Changeset, error) {
	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, listAllSQL); err != nil {
		return nil, fmt.Errorf("list changesets: %w", postgres.MapError(err, "changeset", ""))
	}
	return toDomain(rows)
}

// ListEntityIDs pages through distinct entity ids in ascending order,
// starting strictly after the given id.
func (r *Repo) ListEntityIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &ids, listEntityIDsSQL, after, limit); err != nil {
		return nil, fmt.Errorf("list entity ids: %w", postgres.MapError(err, "entity", ""))
	}
	return ids, nil
}

// ListPending returns the oldest changesets that have no document-level decision yet.
func (r *Repo) ListPending(ctx context.Context, limit int) ([]domain.Changeset, error) {
	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, listPendingSQL, limit); err != nil {
		return nil, fmt.Errorf("list pending changesets: %w", postgres.MapError(err, "changeset", ""))
	}
	return toDomain(rows)
}

// FindMatching returns every changeset of the entities that have at least one
// changeset satisfying q, regardless of moderation state. The limit keeps the
// most recently active entities. Results are ordered by
// (for_entity, created_at, id).
func (r *Repo) FindMatching(ctx context.Context, q domain.MatchQuery) ([]domain.Changeset, error) {
	if q.Empty() {
		return []domain.Changeset{}, nil
	}

	pred, err := postgres.MatchPredicate(q)
	if err != nil {
		return nil, err
	}

	entities := postgres.Builder.
		Select("for_entity").
		From("changesets").
		Where(pred).
		GroupBy("for_entity").
		OrderBy("max(created_at) DESC", "for_entity")
	if q.Limit > 0 {
		entities = entities.Limit(uint64(q.Limit))
	}

	query := postgres.Builder.
		Select(columns).
		From("changesets").
		Where(entities.Prefix("for_entity IN (").Suffix(")")).
		OrderBy("for_entity", "created_at", "id")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build changeset match query: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("find matching changesets: %w", postgres.MapError(err, "changeset", ""))
	}
	return toDomain(rows)
}
