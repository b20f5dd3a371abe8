package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/session"
)

// Options configure the websocket front end.
type Options struct {
	Addr           string
	UpgradeRateRPM int
	Heartbeat      time.Duration
	RequestTimeout time.Duration
}

type GameServer struct {
	opts           Options
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	httpServer     *http.Server
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(opts Options, rooms *room.Manager, sessions *session.Manager, mon *monitor.Monitor) *GameServer {
	if opts.UpgradeRateRPM <= 0 {
		opts.UpgradeRateRPM = 120
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	s := &GameServer{
		opts:           opts,
		roomManager:    rooms,
		sessionManager: sessions,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router wires /ws, /metrics and /healthz.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.monitor != nil {
		r.Handle("/metrics", s.monitor.Handler())
	}
	r.Group(func(r chi.Router) {
		// 限制每个 IP 的握手频率
		r.Use(httprate.LimitByIP(s.opts.UpgradeRateRPM, time.Minute))
		r.Get("/ws", s.handleWebSocket)
	})
	return r
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the open ones.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
	return s.httpServer.Shutdown(ctx)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		http.Error(w, "player_id is required", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(playerID, conn)
}

func (s *GameServer) handleConnection(playerID string, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.opts.Heartbeat)
	sess := session.NewSession(uuid.New().String(), playerID, wsConn)
	if roomID, ok := s.roomManager.RoomOf(playerID); ok {
		sess.SetRoomID(roomID)
	}
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infow("connection opened", "remote", wsConn.RemoteAddr().String(), "session_id", sess.ID, "player_id", playerID)

	// 断线不离开房间，座位和筹码保留，重连后继续
	defer func() {
		logger.Log.Infow("connection closed", "session_id", sess.ID, "player_id", playerID)
		s.sessionManager.Remove(sess.ID)
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-s.shutdownChan:
			wsConn.Close()
		case <-closed:
		}
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	sess.Touch()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		err = s.handleCreateRoom(ctx, sess, packet)
	case network.MsgTypeJoinRoom, network.MsgTypeLeaveRoom, network.MsgTypeSit, network.MsgTypeStandUp, network.MsgTypeReady:
		err = s.handleLifecycle(ctx, sess, packet)
	case network.MsgTypePlayerAction:
		err = s.handleGameAction(ctx, sess, packet)
	default:
		logger.Log.Infow("unknown message type", "msg_id", packet.MsgID, "session_id", sess.ID)
		err = game.Errorf(game.KindIllegalMove, "unknown message %d", packet.MsgID)
	}
	if err != nil {
		s.sendError(sess, packet.MsgID, err)
	}
}

func (s *GameServer) sendError(sess *session.Session, msgID uint16, err error) {
	data, encErr := network.Encode(network.NewErrorResponse(msgID, err))
	if encErr != nil {
		return
	}
	if sendErr := sess.Send(network.MsgTypeError, data); sendErr != nil {
		logger.Log.Debugw("error reply not delivered", "session_id", sess.ID, "error", sendErr)
	}
}

func (s *GameServer) sendView(sess *session.Session, v *room.View) error {
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	return sess.Send(network.MsgTypeRoomState, data)
}

func decode(packet *network.Packet, v any) error {
	if len(packet.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(packet.Data, v); err != nil {
		return game.Wrap(game.KindIllegalMove, err, "malformed request")
	}
	return nil
}

// handleCreateRoom 创建房间，创建者自动加入
func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var req network.CreateRoomRequest
	if err := decode(packet, &req); err != nil {
		return err
	}
	r, err := s.roomManager.CreateRoom(ctx, room.Options{Type: req.Type, Stake: req.Stake, MaxPlayers: req.MaxPlayers})
	if err != nil {
		return err
	}
	logger.Log.Infow("room created by player", "room_id", r.ID, "player_id", sess.PlayerID)

	data, err := network.Encode(network.CreateRoomResponse{RoomID: r.ID})
	if err != nil {
		return err
	}
	if err := sess.Send(network.MsgTypeCreateRoom, data); err != nil {
		return err
	}
	return s.join(ctx, sess, r.ID, game.RolePlayer)
}

func (s *GameServer) join(ctx context.Context, sess *session.Session, roomID string, role game.Role) error {
	v, err := s.roomManager.Act(ctx, roomID, sess.PlayerID, game.Action{Type: game.ActionJoin, Role: role})
	if err != nil {
		return err
	}
	s.sessionManager.SetRoom(sess.PlayerID, roomID)
	return s.sendView(sess, v)
}

func (s *GameServer) handleLifecycle(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var req network.RoomRequest
	if err := decode(packet, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		req.RoomID = sess.RoomID()
	}

	a := game.Action{Seat: req.Seat, Amount: req.Amount, Role: req.Role}
	switch packet.MsgID {
	case network.MsgTypeJoinRoom:
		return s.join(ctx, sess, req.RoomID, req.Role)
	case network.MsgTypeLeaveRoom:
		a.Type = game.ActionLeave
	case network.MsgTypeSit:
		a.Type = game.ActionSit
	case network.MsgTypeStandUp:
		a.Type = game.ActionStandUp
	case network.MsgTypeReady:
		a.Type = game.ActionReady
	}
	if _, err := s.roomManager.Act(ctx, req.RoomID, sess.PlayerID, a); err != nil {
		return err
	}
	if a.Type == game.ActionLeave {
		s.sessionManager.SetRoom(sess.PlayerID, "")
	}
	return nil
}

func (s *GameServer) handleGameAction(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var req network.ActionRequest
	if err := decode(packet, &req); err != nil {
		return err
	}
	roomID := req.RoomID
	if roomID == "" {
		roomID = sess.RoomID()
	}
	if roomID == "" {
		logger.Log.Warnw("game action outside a room", "session_id", sess.ID, "player_id", sess.PlayerID)
		return game.Errorf(game.KindNotFound, "not in a room")
	}
	if req.Action.Type.IsLifecycle() {
		return game.Errorf(game.KindIllegalMove, "%s has its own message", req.Action.Type)
	}
	_, err := s.roomManager.Act(ctx, roomID, sess.PlayerID, req.Action)
	return err
}
