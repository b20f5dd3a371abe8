// broadcast/broadcast.go
package broadcast

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/session"
)

// Sink 接收房间状态变更。公共状态发给整个房间，私有状态只发给一个玩家。
type Sink interface {
	PublishState(ctx context.Context, roomID string, state []byte) error
	PublishPrivate(ctx context.Context, roomID, playerID string, state []byte) error
}

// SessionSink 通过 websocket 会话推送
type SessionSink struct {
	sessions *session.Manager
}

func NewSessionSink(sessions *session.Manager) *SessionSink {
	return &SessionSink{sessions: sessions}
}

func (b *SessionSink) PublishState(_ context.Context, roomID string, state []byte) error {
	for _, s := range b.sessions.GetByRoom(roomID) {
		if err := s.Send(network.MsgTypeRoomState, state); err != nil {
			// 发送失败的连接由读循环清理
			logger.Log.Debugw("room state not delivered", "room_id", roomID, "session_id", s.ID, "error", err)
		}
	}
	return nil
}

func (b *SessionSink) PublishPrivate(_ context.Context, roomID, playerID string, state []byte) error {
	for _, s := range b.sessions.GetByPlayer(playerID) {
		if s.RoomID() != roomID {
			continue
		}
		if err := s.Send(network.MsgTypePrivateState, state); err != nil {
			logger.Log.Debugw("private state not delivered", "room_id", roomID, "player_id", playerID, "error", err)
		}
	}
	return nil
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes public room state to <subject>.<roomID> for other
// services. Private state never leaves the process.
type NATSSink struct {
	conn    publisher
	subject string
}

func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	if subject == "" {
		subject = "cardroom.state"
	}
	return &NATSSink{conn: conn, subject: subject}
}

// ConnectNATS dials url, authenticating with token when one is given.
func ConnectNATS(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("cardroom"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

func (n *NATSSink) Subject(roomID string) string { return n.subject + "." + roomID }

func (n *NATSSink) PublishState(_ context.Context, roomID string, state []byte) error {
	return n.conn.Publish(n.Subject(roomID), state)
}

func (n *NATSSink) PublishPrivate(context.Context, string, string, []byte) error { return nil }

// MultiSink fans out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) PublishState(ctx context.Context, roomID string, state []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishState(ctx, roomID, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) PublishPrivate(ctx context.Context, roomID, playerID string, state []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishPrivate(ctx, roomID, playerID, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
