package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func cs(entity uuid.UUID, at time.Duration, tags domain.Tags) domain.Changeset {
	return domain.Changeset{ID: uuid.Must(uuid.NewV7()), ForEntity: entity, Tags: tags, CreatedAt: t0.Add(at)}
}

func TestChangesetRepo_AppendAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Changesets()
	e := uuid.New()

	late, err := repo.Append(ctx, cs(e, 2*time.Second, domain.Tags{"name": domain.String("B")}))
	require.NoError(t, err)
	early, err := repo.Append(ctx, cs(e, time.Second, domain.Tags{"name": domain.String("A")}))
	require.NoError(t, err)
	_, err = repo.Append(ctx, cs(uuid.New(), 0, domain.Tags{"name": domain.String("other")}))
	require.NoError(t, err)

	got, err := repo.ListByEntity(ctx, e)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestChangesetRepo_AppendRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Changesets()

	c := cs(uuid.New(), 0, domain.Tags{"name": domain.String("A")})
	_, err := repo.Append(ctx, c)
	require.NoError(t, err)

	_, err = repo.Append(ctx, c)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = repo.Append(ctx, cs(uuid.New(), 0, domain.Tags{}))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestChangesetRepo_AppendIsolatesTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Changesets()

	tags := domain.Tags{"name": domain.String("A")}
	c, err := repo.Append(ctx, cs(uuid.New(), 0, tags))
	require.NoError(t, err)
	tags["name"] = domain.String("mutated")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Tags["name"].String())
}

func TestChangesetRepo_ListPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()
	e := uuid.New()

	decided, err := store.Changesets().Append(ctx, cs(e, 0, domain.Tags{"name": domain.String("A")}))
	require.NoError(t, err)
	tagOnly, err := store.Changesets().Append(ctx, cs(e, time.Second, domain.Tags{"name": domain.String("B")}))
	require.NoError(t, err)

	_, err = store.Decisions().Append(ctx, domain.DecisionEdge{
		ID: uuid.New(), Kind: domain.DecisionApproved, TargetChangeset: decided.ID, Reviewer: "mod",
	})
	require.NoError(t, err)
	_, err = store.Decisions().Append(ctx, domain.DecisionEdge{
		ID: uuid.New(), Kind: domain.DecisionApprovedTag, TargetChangeset: tagOnly.ID, TargetKey: "name", Reviewer: "mod",
	})
	require.NoError(t, err)

	pending, err := store.Changesets().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tagOnly.ID, pending[0].ID)
}

func TestChangesetRepo_FindMatching(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Changesets()
	hit, miss := uuid.New(), uuid.New()

	_, err := repo.Append(ctx, cs(hit, 0, domain.Tags{"wikidata": domain.String("Q1")}))
	require.NoError(t, err)
	_, err = repo.Append(ctx, cs(hit, time.Second, domain.Tags{"name": domain.String("Cafe")}))
	require.NoError(t, err)
	_, err = repo.Append(ctx, cs(miss, 0, domain.Tags{"wikidata": domain.String("Q2")}))
	require.NoError(t, err)

	got, err := repo.FindMatching(ctx, domain.MatchQuery{Tags: domain.Tags{"wikidata": domain.String("Q1")}})
	require.NoError(t, err)
	require.Len(t, got, 2, "all changesets of the matching entity are returned")
	for _, c := range got {
		assert.Equal(t, hit, c.ForEntity)
	}

	none, err := repo.FindMatching(ctx, domain.MatchQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChangesetRepo_FindMatching_LimitKeepsMostRecentEntities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Changesets()
	older, newer := uuid.New(), uuid.New()
	name := domain.Tags{"name": domain.String("Post Office")}

	_, err := repo.Append(ctx, cs(older, 0, name))
	require.NoError(t, err)
	_, err = repo.Append(ctx, cs(newer, time.Minute, name))
	require.NoError(t, err)

	got, err := repo.FindMatching(ctx, domain.MatchQuery{Tags: name, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, newer, got[0].ForEntity)
}

func TestSnapshotRepo_FindMatching_TextualIdentifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Snapshots()
	id := uuid.New()

	_, err := repo.Replace(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{"osm_id": domain.Number(42)}, UpdatedAt: t0})
	require.NoError(t, err)

	got, err := repo.FindMatching(ctx, domain.MatchQuery{Tags: domain.Tags{"osm_id": domain.String("42")}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
}

func TestDecisionRepo_UnknownTarget(t *testing.T) {
	t.Parallel()
	_, err := NewStore().Decisions().Append(context.Background(), domain.DecisionEdge{
		ID: uuid.New(), Kind: domain.DecisionApproved, TargetChangeset: uuid.New(), Reviewer: "mod",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotRepo_ReplaceKeepsUpdatedAtWhenUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Snapshots()
	id := uuid.New()
	tags := domain.Tags{"name": domain.String("A")}

	first, err := repo.Replace(ctx, domain.Snapshot{ID: id, Tags: tags, UpdatedAt: t0})
	require.NoError(t, err)
	second, err := repo.Replace(ctx, domain.Snapshot{ID: id, Tags: tags, UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	third, err := repo.Replace(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{}, UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), third.UpdatedAt)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestSnapshotRepo_FindMatchingOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewStore().Snapshots()
	older, newer := uuid.New(), uuid.New()
	tags := domain.Tags{"name": domain.String("Cafe")}

	_, err := repo.Replace(ctx, domain.Snapshot{ID: older, Tags: tags, UpdatedAt: t0})
	require.NoError(t, err)
	_, err = repo.Replace(ctx, domain.Snapshot{ID: newer, Tags: tags, UpdatedAt: t0.Add(time.Minute)})
	require.NoError(t, err)

	got, err := repo.FindMatching(ctx, domain.MatchQuery{Tags: tags, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].ID)
	assert.Equal(t, older, got[1].ID)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewSnapshotCache()
	snap := domain.Snapshot{ID: uuid.New(), Tags: domain.Tags{"name": domain.String("A")}}

	_, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, snap))
	got, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Tags.Equal(snap.Tags))

	require.NoError(t, c.Invalidate(ctx, snap.ID))
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotCache_KeepsNewerVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewSnapshotCache()
	id := uuid.New()

	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("new")}, UpdatedAt: t0.Add(time.Second)}))
	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("old")}, UpdatedAt: t0}))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.Tags["name"].String())
}
