package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/gamestate"
	"github.com/wfunc/cardroom/logger"
)

// Manager 管理所有房间，并保证一个玩家同时只在一个房间里
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	claims   map[string]string // playerID -> roomID
	claimMu  sync.Mutex
	settings Settings
	deps     Deps
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(settings Settings, deps Deps) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		claims:   make(map[string]string),
		settings: settings.withDefaults(),
		deps:     deps,
	}
}

// CreateRoom 创建一个新房间并启动它
func (m *Manager) CreateRoom(ctx context.Context, opts Options) (*Room, error) {
	room, err := newRoom(opts, m.settings, m.deps)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	if _, exists := m.rooms[room.ID]; exists {
		m.mutex.Unlock()
		return nil, game.Errorf(game.KindIllegalMove, "room %s already exists", room.ID)
	}
	m.rooms[room.ID] = room
	count := len(m.rooms)
	m.mutex.Unlock()

	room.onClosed = m.closer(room)
	room.start()
	m.deps.Monitor.SetActiveRooms(count)
	// first snapshot
	if err := room.Do(ctx, func() error { room.touch(); return nil }); err != nil {
		logger.Log.Warnw("initial room snapshot deferred", "room_id", room.ID, "error", err)
	}
	logger.Log.Infow("room created", "room_id", room.ID, "type", room.Type, "stake", room.Stake.String(), "max_players", room.MaxPlayers)
	return room, nil
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Rooms lists open rooms ordered by id.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomOf returns the room a player has joined.
func (m *Manager) RoomOf(playerID string) (string, bool) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()
	id, ok := m.claims[playerID]
	return id, ok
}

// claim reserves playerID for roomID. It reports whether the claim is new.
func (m *Manager) claim(playerID, roomID string) (bool, error) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()
	if cur, ok := m.claims[playerID]; ok {
		if cur == roomID {
			return false, nil
		}
		return false, game.Errorf(game.KindRoomNotJoinable, "already in room %s", cur)
	}
	m.claims[playerID] = roomID
	return true, nil
}

func (m *Manager) release(playerID, roomID string) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()
	if m.claims[playerID] == roomID {
		delete(m.claims, playerID)
	}
}

// Act routes a player action to its room. Join and leave also maintain the
// one-room-per-player registry.
func (m *Manager) Act(ctx context.Context, roomID, playerID string, a game.Action) (*View, error) {
	start := time.Now()
	a.PlayerID = playerID

	view, err := m.act(ctx, roomID, a)

	result := "ok"
	if err != nil {
		if result = string(game.KindOf(err)); result == "" {
			result = "error"
		}
	}
	m.deps.Monitor.ObserveAction(string(a.Type), result, time.Since(start))
	return view, err
}

func (m *Manager) act(ctx context.Context, roomID string, a game.Action) (*View, error) {
	room, ok := m.GetRoom(roomID)
	if !ok {
		return nil, &game.Error{Kind: game.KindNotFound, RoomID: roomID, PlayerID: a.PlayerID, Msg: "no such room"}
	}

	claimed := false
	if a.Type == game.ActionJoin {
		var err error
		if claimed, err = m.claim(a.PlayerID, roomID); err != nil {
			return nil, game.Annotate(err, roomID, a.PlayerID)
		}
	}

	view, err := room.Act(ctx, a)
	switch {
	case err != nil && claimed:
		m.release(a.PlayerID, roomID)
	case err == nil && a.Type == game.ActionLeave:
		m.release(a.PlayerID, roomID)
	}
	return view, err
}

// CloseRoom refunds and cancels a room. The room stops once its refunds are
// committed, which is usually before CloseRoom returns.
func (m *Manager) CloseRoom(ctx context.Context, id string) error {
	room, ok := m.GetRoom(id)
	if !ok {
		return &game.Error{Kind: game.KindNotFound, RoomID: id, Msg: "no such room"}
	}
	members, err := room.Cancel(ctx)
	if err != nil {
		return err
	}
	for _, p := range members {
		m.release(p, id)
	}
	logger.Log.Infow("room closed", "room_id", id)
	return nil
}

// closer unregisters and stops a cancelled room once it owes nothing.
func (m *Manager) closer(room *Room) func() {
	return func() {
		if cur, ok := m.GetRoom(room.ID); ok && cur == room {
			m.remove(room.ID)
		}
		room.Close()
	}
}

func (m *Manager) remove(id string) {
	m.mutex.Lock()
	delete(m.rooms, id)
	count := len(m.rooms)
	m.mutex.Unlock()
	m.deps.Monitor.SetActiveRooms(count)
}

// Restore rebuilds a room from its snapshot, settles anything it still owes
// and starts it. A room that is already open is returned as is.
func (m *Manager) Restore(ctx context.Context, roomID string) (*Room, error) {
	if room, ok := m.GetRoom(roomID); ok {
		return room, nil
	}
	snap, err := m.deps.Store.Load(ctx, roomID)
	if errors.Is(err, gamestate.ErrNotFound) {
		return nil, &game.Error{Kind: game.KindNotFound, RoomID: roomID, Msg: "no snapshot"}
	}
	if err != nil {
		return nil, err
	}
	room, err := fromSnapshot(snap, m.settings, m.deps)
	if err != nil {
		return nil, err
	}
	if err := room.catchUp(ctx); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	if existing, ok := m.rooms[roomID]; ok {
		m.mutex.Unlock()
		return existing, nil
	}
	m.rooms[roomID] = room
	count := len(m.rooms)
	m.mutex.Unlock()
	m.deps.Monitor.SetActiveRooms(count)

	for p := range room.members {
		if _, err := m.claim(p, roomID); err != nil {
			logger.Log.Warnw("restored member already claimed", "room_id", roomID, "player_id", p, "error", err)
		}
	}

	room.onClosed = m.closer(room)
	room.start()
	if err := room.Do(ctx, func() error { room.resume(); return nil }); err != nil {
		return room, err
	}
	logger.Log.Infow("room restored", "room_id", roomID, "status", room.Status())
	return room, nil
}

// RestoreAll restores every listed room and returns how many came back.
func (m *Manager) RestoreAll(ctx context.Context, ids []string) int {
	n := 0
	for _, id := range ids {
		if _, err := m.Restore(ctx, id); err != nil {
			logger.Log.Errorw("room restore failed", "room_id", id, "error", err)
			continue
		}
		n++
	}
	return n
}

// Shutdown stops every room goroutine without settling; snapshots stay so the
// rooms can be restored.
func (m *Manager) Shutdown() {
	for _, r := range m.Rooms() {
		r.Close()
		<-r.Done()
	}
}
