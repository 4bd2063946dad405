package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// UniqueSuffix returns a short unique string for generating non-conflicting test data.
func UniqueSuffix() string {
	return uuid.New().String()[:8]
}

// Now returns the current time at database precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SeedChangeset appends a changeset for entity with the given tags.
func SeedChangeset(t *testing.T, pool *pgxpool.Pool, entity uuid.UUID, tags domain.Tags, createdAt time.Time) domain.Changeset {
	t.Helper()

	cs := domain.Changeset{
		ID:        uuid.Must(uuid.NewV7()),
		ForEntity: entity,
		Tags:      tags,
		AuthorTag: "seed-" + UniqueSuffix(),
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}

	raw, err := json.Marshal(tags)
	if err != nil {
		t.Fatalf("testhelper: SeedChangeset marshal tags: %v", err)
	}

	var lat, lng *float64
	if la, lo, ok := domain.Coordinates(tags); ok {
		lat, lng = &la, &lo
	}

	_, err = pool.Exec(context.Background(),
		`INSERT INTO changesets (id, for_entity, tags, author_tag, is_automated, sources, comment, lat, lng, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cs.ID, cs.ForEntity, raw, cs.AuthorTag, cs.IsAutomated, cs.Sources, cs.Comment, lat, lng, cs.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedChangeset insert: %v", err)
	}

	return cs
}

// SeedDecision appends a decision edge against a changeset.
func SeedDecision(t *testing.T, pool *pgxpool.Pool, kind domain.DecisionKind, cs uuid.UUID, key string, createdAt time.Time) domain.DecisionEdge {
	t.Helper()

	e := domain.DecisionEdge{
		ID:              uuid.Must(uuid.NewV7()),
		Kind:            kind,
		TargetChangeset: cs,
		TargetKey:       key,
		Reviewer:        "reviewer-" + UniqueSuffix(),
		CreatedAt:       createdAt.UTC().Truncate(time.Microsecond),
	}

	var targetKey *string
	if key != "" {
		targetKey = &key
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO decision_edges (id, kind, target_changeset, target_key, reviewer, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Kind), e.TargetChangeset, targetKey, e.Reviewer, e.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedDecision insert: %v", err)
	}

	return e
}

// SeedApproved appends a changeset together with a document-level approval.
func SeedApproved(t *testing.T, pool *pgxpool.Pool, entity uuid.UUID, tags domain.Tags, createdAt time.Time) domain.Changeset {
	t.Helper()
	cs := SeedChangeset(t, pool, entity, tags, createdAt)
	SeedDecision(t, pool, domain.DecisionApproved, cs.ID, "", createdAt.Add(time.Second))
	return cs
}
