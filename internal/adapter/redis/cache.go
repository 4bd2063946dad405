// Package redis caches snapshots in Redis with a TTL. Each entry is a hash
// holding the snapshot JSON and its version, the UpdatedAt in microseconds.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

const (
	keyPrefix    = "snapshot:"
	fieldData    = "data"
	fieldVersion = "v"
)

// setIfNotOlder writes the entry unless the cached version is newer.
// KEYS[1] entry key; ARGV[1] version; ARGV[2] data; ARGV[3] ttl in ms.
var setIfNotOlder = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// SnapshotCache implements the snapshot cache on Redis.
type SnapshotCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New parses url, connects and verifies the connection.
func New(ctx context.Context, url string, ttl time.Duration) (*SnapshotCache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a cache from an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

type entry struct {
	ID        uuid.UUID   `json:"id"`
	Tags      domain.Tags `json:"tags"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }

// Get returns the cached snapshot; ok is false on a miss.
func (c *SnapshotCache) Get(ctx context.Context, id uuid.UUID) (domain.Snapshot, bool, error) {
	raw, err := c.client.HGet(ctx, key(id), fieldData).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("get cached snapshot: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if e.Tags == nil {
		e.Tags = domain.Tags{}
	}
	return domain.Snapshot{ID: e.ID, Tags: e.Tags, UpdatedAt: e.UpdatedAt}, true, nil
}

// Set stores a snapshot with the configured TTL unless a newer version of
// the same place is already cached.
func (c *SnapshotCache) Set(ctx context.Context, s domain.Snapshot) error {
	raw, err := json.Marshal(entry{ID: s.ID, Tags: s.Tags, UpdatedAt: s.UpdatedAt})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = setIfNotOlder.Run(ctx, c.client,
		[]string{key(s.ID)},
		s.UpdatedAt.UnixMicro(), raw, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Invalidate deletes the cached snapshots of ids.
func (c *SnapshotCache) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
