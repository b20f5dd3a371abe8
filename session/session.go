// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/cardroom/network"
)

type Session struct {
	ID         string
	Conn       network.Connection
	PlayerID   string
	Data       map[string]interface{} // 自定义数据
	CreatedAt  time.Time
	lastActive time.Time
	roomID     string
	mutex      sync.RWMutex
}

func NewSession(id, playerID string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		PlayerID:   playerID,
		CreatedAt:  now,
		lastActive: now,
		Data:       make(map[string]interface{}),
	}
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Data[key]
}

// RoomID is the room the session's player is in, "" when none.
func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) SetRoomID(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = id
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetByPlayer returns every open connection of one player.
func (m *Manager) GetByPlayer(playerID string) []*Session {
	return m.filter(func(s *Session) bool { return s.PlayerID == playerID })
}

// GetByRoom returns the sessions whose player is in roomID.
func (m *Manager) GetByRoom(roomID string) []*Session {
	return m.filter(func(s *Session) bool { return s.RoomID() == roomID })
}

// SetRoom moves every session of playerID to roomID.
func (m *Manager) SetRoom(playerID, roomID string) {
	for _, s := range m.GetByPlayer(playerID) {
		s.SetRoomID(roomID)
	}
}

func (m *Manager) filter(keep func(*Session) bool) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if keep(session) {
			result = append(result, session)
		}
	}
	return result
}
