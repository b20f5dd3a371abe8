package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/cardroom/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.Count() != 0 {
		t.Fatal("NewManager should start empty")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, "alice", &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}
	if _, exists = manager.Get(sessionID); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByPlayer(t *testing.T) {
	manager := NewManager()
	manager.Add(NewSession("session1", "alice", &MockConnection{}))
	manager.Add(NewSession("session2", "bob", &MockConnection{}))
	manager.Add(NewSession("session3", "alice", &MockConnection{}))

	cases := map[string]int{"alice": 2, "bob": 1, "carol": 0}
	for player, want := range cases {
		if got := len(manager.GetByPlayer(player)); got != want {
			t.Errorf("Expected %d sessions for %s, got %d", want, player, got)
		}
	}
}

func TestManager_SetRoom_GetByRoom(t *testing.T) {
	manager := NewManager()
	a1 := NewSession("a1", "alice", &MockConnection{})
	a2 := NewSession("a2", "alice", &MockConnection{})
	b := NewSession("b", "bob", &MockConnection{})
	manager.Add(a1)
	manager.Add(a2)
	manager.Add(b)

	manager.SetRoom("alice", "room-1")
	if got := len(manager.GetByRoom("room-1")); got != 2 {
		t.Fatalf("Expected both alice sessions in room-1, got %d", got)
	}
	if b.RoomID() != "" {
		t.Fatalf("bob should not be in a room, got %q", b.RoomID())
	}

	manager.SetRoom("alice", "")
	if got := len(manager.GetByRoom("room-1")); got != 0 {
		t.Fatalf("Expected room-1 to be empty, got %d", got)
	}
}

func TestSession_SendTouches(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", "alice", conn)
	before := sess.LastActive()
	time.Sleep(time.Millisecond)

	if err := sess.Send(network.MsgTypeRoomState, nil); err != nil {
		t.Fatal(err)
	}
	if !sess.LastActive().After(before) {
		t.Error("Send should refresh LastActive")
	}
	if len(conn.sent) != 1 || conn.sent[0] != network.MsgTypeRoomState {
		t.Errorf("unexpected sent ids %v", conn.sent)
	}
}

func TestSession_Set_Get(t *testing.T) {
	sess := NewSession("test_session", "alice", &MockConnection{})
	sess.Set("test_key", "test_value")

	if v := sess.Get("test_key"); v != "test_value" {
		t.Errorf("Expected value %v, got %v", "test_value", v)
	}
	if v := sess.Get("non_existent_key"); v != nil {
		t.Errorf("Expected nil for non-existent key, got %v", v)
	}
}
