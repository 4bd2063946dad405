// Package decision implements the append-only Moderation Ledger on PostgreSQL.
package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Repo provides decision edge persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new decision edge repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

const insertSQL = `
INSERT INTO decision_edges (id, kind, target_changeset, target_key, reviewer, created_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
RETURNING created_at`

const listByChangesetsSQL = `
SELECT id, kind, target_changeset, target_key, reviewer, created_at
FROM decision_edges
WHERE target_changeset = ANY($1::uuid[])
ORDER BY created_at, id`

type row struct {
	ID              uuid.UUID `db:"id"`
	Kind            string    `db:"kind"`
	TargetChangeset uuid.UUID `db:"target_changeset"`
	TargetKey       *string   `db:"target_key"`
	Reviewer        string    `db:"reviewer"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r row) toDomain() domain.DecisionEdge {
	e := domain.DecisionEdge{
		ID:              r.ID,
		Kind:            domain.DecisionKind(r.Kind),
		TargetChangeset: r.TargetChangeset,
		Reviewer:        r.Reviewer,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.TargetKey != nil {
		e.TargetKey = *r.TargetKey
	}
	return e
}

// Append inserts a decision edge. A missing target changeset surfaces as
// domain.ErrNotFound through the foreign key.
func (r *Repo) Append(ctx context.Context, e domain.DecisionEdge) (domain.DecisionEdge, error) {
	var targetKey *string
	if e.TargetKey != "" {
		targetKey = &e.TargetKey
	}
	var createdAt *time.Time
	if !e.CreatedAt.IsZero() {
		createdAt = &e.CreatedAt
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	err := q.QueryRow(ctx, insertSQL,
		e.ID, string(e.Kind), e.TargetChangeset, targetKey, e.Reviewer, createdAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return domain.DecisionEdge{}, fmt.Errorf("append decision edge: %w",
			postgres.MapError(err, "changeset", e.TargetChangeset.String()))
	}

	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// ListByChangeset returns every edge that targets the changeset.
func (r *Repo) ListByChangeset(ctx context.Context, changesetID uuid.UUID) ([]domain.DecisionEdge, error) {
	return r.ListByChangesets(ctx, []uuid.UUID{changesetID})
}

// ListByChangesets returns every edge that targets one of the changesets,
// ordered by (created_at, id).
func (r *Repo) ListByChangesets(ctx context.Context, changesetIDs []uuid.UUID) ([]domain.DecisionEdge, error) {
	if len(changesetIDs) == 0 {
		return []domain.DecisionEdge{}, nil
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, listByChangesetsSQL, changesetIDs); err != nil {
		return nil, fmt.Errorf("list decision edges: %w", postgres.MapError(err, "decision edge", ""))
	}

	out := make([]domain.DecisionEdge, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
