package gamestate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/persistence"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client)
}

func snap(data string) Snapshot {
	return Snapshot{Data: json.RawMessage(data)}
}

func TestSaveWritesBothLayers(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedis(t)
	durable := persistence.NewMemoryStore()
	store := NewStore(durable, cache, time.Minute)

	require.NoError(t, store.Save(ctx, "r1", snap(`{"seq":1}`)))

	rec, err := durable.LoadSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":1}`, string(rec.Data))
	assert.Equal(t, CurrentVersion, rec.Version)

	assert.True(t, mr.Exists(keyPrefix+"r1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"r1"))
}

func TestLoadFallsBackAndRepopulates(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedis(t)
	durable := persistence.NewMemoryStore()
	store := NewStore(durable, cache, time.Hour)

	require.NoError(t, store.Save(ctx, "r1", snap(`{"seq":2}`)))
	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(keyPrefix+"r1"))

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":2}`, string(got.Data))
	assert.True(t, mr.Exists(keyPrefix+"r1"))
}

func TestLoadPrefersCache(t *testing.T) {
	ctx := context.Background()
	_, cache := newRedis(t)
	durable := persistence.NewMemoryStore()
	store := NewStore(durable, cache, time.Hour)

	require.NoError(t, store.Save(ctx, "r1", snap(`{"seq":3}`)))
	require.NoError(t, durable.DeleteSnapshot(ctx, "r1"))

	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":3}`, string(got.Data))
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(persistence.NewMemoryStore(), NewMemoryCache(), 0)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteClearsBoth(t *testing.T) {
	ctx := context.Background()
	mr, cache := newRedis(t)
	durable := persistence.NewMemoryStore()
	store := NewStore(durable, cache, time.Hour)

	require.NoError(t, store.Save(ctx, "r1", snap(`{}`)))
	require.NoError(t, store.Delete(ctx, "r1"))

	assert.False(t, mr.Exists(keyPrefix+"r1"))
	_, err := store.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVersionRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore(persistence.NewMemoryStore(), NewMemoryCache(), time.Hour)

	err := store.Save(ctx, "r1", Snapshot{Version: 99, Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	cache := NewMemoryCache()
	require.NoError(t, cache.Set(ctx, Snapshot{RoomID: "r2", Version: 2, Data: json.RawMessage(`{}`)}, time.Hour))
	_, err = NewStore(persistence.NewMemoryStore(), cache, time.Hour).Load(ctx, "r2")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

type flakyCache struct {
	*MemoryCache
	setFailures    int
	deleteFailures int
	deletes        int
}

func (c *flakyCache) Set(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	if c.setFailures > 0 {
		c.setFailures--
		return errors.New("cache unavailable")
	}
	return c.MemoryCache.Set(ctx, snap, ttl)
}

func (c *flakyCache) Delete(ctx context.Context, roomID string) error {
	c.deletes++
	if c.deleteFailures > 0 {
		c.deleteFailures--
		return errors.New("cache unavailable")
	}
	return c.MemoryCache.Delete(ctx, roomID)
}

func TestDeleteRetriesCache(t *testing.T) {
	ctx := context.Background()
	cache := &flakyCache{MemoryCache: NewMemoryCache(), deleteFailures: 2}
	store := NewStore(persistence.NewMemoryStore(), cache, time.Hour)
	require.NoError(t, store.Save(ctx, "r1", snap(`{}`)))

	// first pre-delete and first retry fail, second retry succeeds
	require.NoError(t, store.Delete(ctx, "r1"))
	assert.Equal(t, 3, cache.deletes)

	cache.deleteFailures = 10
	require.NoError(t, store.Save(ctx, "r1", snap(`{}`)))
	err := store.Delete(ctx, "r1")
	assert.Error(t, err)
}

func TestSaveEvictsWhenCacheWriteFails(t *testing.T) {
	ctx := context.Background()
	cache := &flakyCache{MemoryCache: NewMemoryCache()}
	store := NewStore(persistence.NewMemoryStore(), cache, time.Hour)
	require.NoError(t, store.Save(ctx, "r1", snap(`{"v":1}`)))

	// set fails, the retried delete clears the old copy
	cache.setFailures, cache.deleteFailures = 1, 1
	require.NoError(t, store.Save(ctx, "r1", snap(`{"v":2}`)))
	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))
}

func TestSaveFailsWhenStaleCacheSurvives(t *testing.T) {
	ctx := context.Background()
	cache := &flakyCache{MemoryCache: NewMemoryCache()}
	durable := persistence.NewMemoryStore()
	store := NewStore(durable, cache, time.Hour)
	require.NoError(t, store.Save(ctx, "r1", snap(`{"v":1}`)))

	cache.setFailures, cache.deleteFailures = 1, 10
	assert.Error(t, store.Save(ctx, "r1", snap(`{"v":2}`)))

	rec, err := durable.LoadSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(rec.Data))

	// once the cache recovers the retried save replaces the stale entry
	cache.deleteFailures = 0
	require.NoError(t, store.Save(ctx, "r1", snap(`{"v":2}`)))
	got, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, Snapshot{RoomID: "r1", Version: 1}, time.Second))
	_, err := cache.Get(ctx, "r1")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = cache.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}
