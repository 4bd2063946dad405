package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// SnapshotCache is a map-backed snapshot cache.
type SnapshotCache struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Snapshot
}

// NewSnapshotCache creates an empty cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{items: make(map[uuid.UUID]domain.Snapshot)}
}

func (c *SnapshotCache) Get(_ context.Context, id uuid.UUID) (domain.Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[id]
	if ok {
		s.Tags = s.Tags.Clone()
	}
	return s, ok, nil
}

// Set keeps the cached copy when it is newer than s.
func (c *SnapshotCache) Set(_ context.Context, s domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.items[s.ID]; ok && cur.UpdatedAt.After(s.UpdatedAt) {
		return nil
	}
	s.Tags = s.Tags.Clone()
	c.items[s.ID] = s
	return nil
}

func (c *SnapshotCache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
	return nil
}

// Len returns the number of cached snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, nil
}
func (NopCache) Set(context.Context, domain.Snapshot) error     { return nil }
func (NopCache) Invalidate(context.Context, ...uuid.UUID) error { return nil }
