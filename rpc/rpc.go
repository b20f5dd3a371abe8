package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr. Services are added with Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string { return s.address }

func (s *Server) Register(service any) error {
	return s.rpc.Register(service)
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RoomService is the read-only RPC surface: public room state and balances.
type RoomService struct {
	rooms   *room.Manager
	wallets *services.WalletService
	timeout time.Duration
}

func NewRoomService(rooms *room.Manager, wallets *services.WalletService, timeout time.Duration) *RoomService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RoomService{rooms: rooms, wallets: wallets, timeout: timeout}
}

type SnapshotArgs struct {
	RoomID string
}

// SnapshotReply carries the view as JSON; gob cannot encode the per-game
// table held in View.Table.
type SnapshotReply struct {
	State []byte
}

// Snapshot returns the public view of one room. It never includes hole
// cards or blot hands.
func (rs *RoomService) Snapshot(args *SnapshotArgs, reply *SnapshotReply) error {
	r, ok := rs.rooms.GetRoom(args.RoomID)
	if !ok {
		return &game.Error{Kind: game.KindNotFound, RoomID: args.RoomID, Msg: "no such room"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()
	v, err := r.View(ctx)
	if err != nil {
		return err
	}
	reply.State, err = json.Marshal(v)
	return err
}

type ListArgs struct{}

type ListReply struct {
	RoomIDs []string
}

func (rs *RoomService) List(_ *ListArgs, reply *ListReply) error {
	for _, r := range rs.rooms.Rooms() {
		reply.RoomIDs = append(reply.RoomIDs, r.ID)
	}
	return nil
}

type BalanceArgs struct {
	UserID string
}

type BalanceReply struct {
	Balance string
}

func (rs *RoomService) Balance(args *BalanceArgs, reply *BalanceReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()
	bal, err := rs.wallets.Balance(ctx, args.UserID)
	if err != nil {
		return err
	}
	reply.Balance = bal.String()
	return nil
}
