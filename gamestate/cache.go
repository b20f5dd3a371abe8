package gamestate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cardroom:snapshot:"

// RedisCache stores snapshots as JSON strings with a TTL.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, roomID string) (Snapshot, error) {
	raw, err := c.client.Get(ctx, keyPrefix+roomID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *RedisCache) Set(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+snap.RoomID, raw, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, keyPrefix+roomID).Err()
}

// MemoryCache is an in-process Cache used when no redis address is configured.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	snap    Snapshot
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, roomID string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[roomID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	if !it.expires.IsZero() && !c.now().Before(it.expires) {
		delete(c.items, roomID)
		return Snapshot{}, ErrNotFound
	}
	return it.snap, nil
}

func (c *MemoryCache) Set(_ context.Context, snap Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := memoryItem{snap: snap}
	it.snap.Data = append(json.RawMessage(nil), snap.Data...)
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.items[snap.RoomID] = it
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, roomID)
	return nil
}
