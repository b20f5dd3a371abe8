// Package gamestate persists room snapshots durably and keeps a cached copy
// for fast reloads.
package gamestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
)

// CurrentVersion is the only snapshot layout this build understands.
const CurrentVersion = 1

var (
	ErrNotFound           = errors.New("gamestate: snapshot not found")
	ErrUnsupportedVersion = errors.New("gamestate: unsupported snapshot version")
)

// Snapshot is a versioned, opaque room state.
type Snapshot struct {
	RoomID  string          `json:"room_id"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
	SavedAt time.Time       `json:"saved_at"`
}

// Cache is the fast layer in front of the durable store. Get returns
// ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, roomID string) (Snapshot, error)
	Set(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, roomID string) error
}

// Store writes through to the durable store and the cache.
type Store struct {
	durable       persistence.SnapshotStore
	cache         Cache
	ttl           time.Duration
	deleteRetries int
}

func NewStore(durable persistence.SnapshotStore, cache Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{durable: durable, cache: cache, ttl: ttl, deleteRetries: 3}
}

// Save persists snap durably first. When the cache cannot take the new copy
// the old entry is evicted; if that fails too Save returns an error, since
// the cache would otherwise serve a snapshot older than the durable one.
func (s *Store) Save(ctx context.Context, roomID string, snap Snapshot) error {
	snap.RoomID = roomID
	if snap.Version == 0 {
		snap.Version = CurrentVersion
	}
	if snap.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	err := s.durable.SaveSnapshot(ctx, models.RoomSnapshot{
		RoomID:  roomID,
		Version: snap.Version,
		Data:    snap.Data,
		SavedAt: snap.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("gamestate: save %s: %w", roomID, err)
	}

	if err := s.cache.Set(ctx, snap, s.ttl); err != nil {
		logger.Log.Warnw("snapshot cache write failed", "room_id", roomID, "error", err)
		return s.evict(ctx, roomID)
	}
	return nil
}

// Load reads the cache, then the durable store, repopulating the cache.
func (s *Store) Load(ctx context.Context, roomID string) (Snapshot, error) {
	snap, err := s.cache.Get(ctx, roomID)
	switch {
	case err == nil:
		return checkVersion(snap)
	case !errors.Is(err, ErrNotFound):
		logger.Log.Warnw("snapshot cache read failed", "room_id", roomID, "error", err)
	}

	rec, err := s.durable.LoadSnapshot(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("gamestate: load %s: %w", roomID, err)
	}
	snap = Snapshot{RoomID: rec.RoomID, Version: rec.Version, Data: rec.Data, SavedAt: rec.SavedAt}
	if _, err := checkVersion(snap); err != nil {
		return Snapshot{}, err
	}

	if err := s.cache.Set(ctx, snap, s.ttl); err != nil {
		logger.Log.Warnw("snapshot cache repopulate failed", "room_id", roomID, "error", err)
	}
	return snap, nil
}

// Delete removes the snapshot from both layers. The cache is cleared before
// and after the durable delete so a concurrent Load cannot resurrect it.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	_ = s.cache.Delete(ctx, roomID)
	if err := s.durable.DeleteSnapshot(ctx, roomID); err != nil {
		return fmt.Errorf("gamestate: delete %s: %w", roomID, err)
	}

	return s.evict(ctx, roomID)
}

// evict drops the cached copy, retrying a few times.
func (s *Store) evict(ctx context.Context, roomID string) error {
	var err error
	for i := 0; i < s.deleteRetries; i++ {
		if err = s.cache.Delete(ctx, roomID); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	logger.Log.Errorw("snapshot cache delete failed", "room_id", roomID, "error", err)
	return fmt.Errorf("gamestate: cache delete %s: %w", roomID, err)
}

// Rooms lists rooms with a durable snapshot.
func (s *Store) Rooms(ctx context.Context) ([]string, error) {
	return s.durable.ListSnapshotRooms(ctx)
}

func checkVersion(snap Snapshot) (Snapshot, error) {
	if snap.Version != CurrentVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	return snap, nil
}
