package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+s.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	snap := domain.Snapshot{
		ID: uuid.New(),
		Tags: domain.Tags{
			"name":       domain.String("Cafe"),
			"lat":        domain.Number(52.5),
			"wheelchair": domain.Bool(true),
		},
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC),
	}

	_, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, snap))

	got, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, snap.Tags.Equal(got.Tags))
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, domain.KindBool, got.Tags["wheelchair"].Kind())
}

func TestSnapshotCache_EmptyTags(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{}}))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: a, Tags: domain.Tags{}}))
	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: b, Tags: domain.Tags{}}))

	require.NoError(t, c.Invalidate(ctx, a, b))
	require.NoError(t, c.Invalidate(ctx))

	assert.False(t, s.Exists(keyPrefix+a.String()))
	assert.False(t, s.Exists(keyPrefix+b.String()))
}

func TestSnapshotCache_OlderVersionDoesNotReplaceNewer(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	stale := domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("old")}, UpdatedAt: t0}
	fresh := domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("new")}, UpdatedAt: t0.Add(time.Microsecond)}

	require.NoError(t, c.Set(ctx, fresh))
	require.NoError(t, c.Set(ctx, stale))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.Tags["name"].String())
	assert.Equal(t, strconv.FormatInt(fresh.UpdatedAt.UnixMicro(), 10), s.HGet(keyPrefix+id.String(), fieldVersion))
	assert.Greater(t, s.TTL(keyPrefix+id.String()), time.Duration(0))
}

func TestSnapshotCache_NewerVersionReplacesOlder(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("old")}, UpdatedAt: t0}))
	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{"name": domain.String("new")}, UpdatedAt: t0.Add(time.Second)}))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.Tags["name"].String())
}

func TestSnapshotCache_Expires(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, c.Set(ctx, domain.Snapshot{ID: id, Tags: domain.Tags{}}))

	s.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_CorruptEntry(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	id := uuid.New()
	s.HSet(keyPrefix+id.String(), fieldData, "{not json")

	_, _, err := c.Get(context.Background(), id)
	assert.Error(t, err)
}

func TestSnapshotCache_Unreachable(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	s.Close()

	_, _, err := c.Get(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
