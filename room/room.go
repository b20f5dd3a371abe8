// room/room.go
package room

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/blot"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/poker"
	"github.com/wfunc/cardroom/settlement"
	"github.com/wfunc/cardroom/state"
)

// Options describe a new room. For poker Stake is the big blind, for blot it
// is the buy-in every player puts in escrow.
type Options struct {
	ID         string          `json:"id"`
	Type       game.Type       `json:"type"`
	Stake      decimal.Decimal `json:"stake"`
	MaxPlayers int             `json:"max_players"`
}

// Room 是游戏房间的核心结构。除了构造时的只读字段，所有状态只在房间自己的
// goroutine 里读写，外部通过 Do 投递命令。
type Room struct {
	ID         string
	Type       game.Type
	Stake      decimal.Decimal
	MaxPlayers int
	CreatedAt  time.Time

	settings Settings
	deps     Deps

	engine    game.Engine
	members   map[string]game.Role
	seats     []*game.Seat
	inHand    map[string]bool
	forfeits  map[string]decimal.Decimal
	ledgerSeq int64
	handNo    int64
	pending   []pendingSettlement
	nextHand  int64
	version   int64
	saved     int64
	published int64
	deleted   bool
	// onClosed runs on the room goroutine once a cancelled room owes nothing.
	onClosed func()

	StateMachine state.StateMachine
	waiting      *state.WaitingState
	playing      *state.PlayingState
	finished     state.State
	cancelled    *state.CancelledState

	mailbox   chan *command
	closeChan chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	ticker    *time.Ticker
}

const (
	cmdPending int32 = iota
	cmdRunning
	cmdAbandoned
)

type command struct {
	ctx   context.Context
	fn    func() error
	reply chan error
	state atomic.Int32
}

// newRoom validates opts and builds an idle room. The actor starts with start.
func newRoom(opts Options, settings Settings, deps Deps) (*Room, error) {
	settings = settings.withDefaults()
	if !opts.Type.Valid() {
		return nil, game.Errorf(game.KindIllegalMove, "unknown game type %q", opts.Type)
	}
	if opts.Type == game.Poker && opts.Stake.IsZero() {
		opts.Stake = settings.DefaultBigBlind
	}
	if !opts.Stake.IsPositive() || !game.Money(opts.Stake).Equal(opts.Stake) {
		return nil, &game.Error{Kind: game.KindIllegalMove, Amount: opts.Stake, Msg: "invalid stake"}
	}
	switch opts.Type {
	case game.Poker:
		if opts.MaxPlayers == 0 {
			opts.MaxPlayers = settings.MaxPokerSeats
		}
		if opts.MaxPlayers < 2 || opts.MaxPlayers > settings.MaxPokerSeats {
			return nil, game.Errorf(game.KindIllegalMove, "poker rooms seat 2 to %d players", settings.MaxPokerSeats)
		}
	case game.Blot:
		if opts.MaxPlayers == 0 {
			opts.MaxPlayers = settings.BlotPlayers
		}
		if opts.MaxPlayers != 2 && opts.MaxPlayers != 4 {
			return nil, game.Errorf(game.KindIllegalMove, "blot is played by 2 or 4 players")
		}
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	r := &Room{
		ID:         opts.ID,
		Type:       opts.Type,
		Stake:      opts.Stake,
		MaxPlayers: opts.MaxPlayers,
		CreatedAt:  time.Now().UTC(),
		settings:   settings,
		deps:       deps,
		members:    make(map[string]game.Role),
		seats:      make([]*game.Seat, opts.MaxPlayers),
		inHand:     make(map[string]bool),
		forfeits:   make(map[string]decimal.Decimal),
		mailbox:    make(chan *command, settings.MailboxSize),
		closeChan:  make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.engine = r.newEngine()
	r.initStateMachine(state.IDWaiting)
	return r, nil
}

func (r *Room) newEngine() game.Engine {
	var deck func() *cards.Deck
	if r.deps.NewDeck != nil {
		deck = func() *cards.Deck { return r.deps.NewDeck(r.Type) }
	}
	if r.Type == game.Blot {
		return blot.New(blot.Config{Players: r.MaxPlayers, Target: r.settings.BlotTarget, NewDeck: deck})
	}
	return poker.New(poker.Config{BigBlind: r.Stake, NewDeck: deck})
}

func (r *Room) initStateMachine(initial string) {
	r.waiting = state.NewWaitingState(r, r.settings.AutoStartTicks)
	r.playing = state.NewPlayingState(r)
	r.finished = state.NewFinishedState(r)
	r.cancelled = state.NewCancelledState(r)

	var first state.State = r.waiting
	switch initial {
	case state.IDPlaying:
		first = r.playing
	case state.IDCancelled:
		first = r.cancelled
	}
	sm := state.NewBaseStateMachine(first)
	_ = sm.AddTransition(r.waiting, r.playing, r.CanStart)
	never := func() bool { return false }
	for _, to := range []state.State{r.waiting, r.playing, r.finished} {
		_ = sm.AddTransition(r.cancelled, to, never)
	}
	r.StateMachine = sm
}

// Status is the current room status: waiting, in_progress, finished or cancelled.
func (r *Room) Status() string {
	return r.StateMachine.GetCurrentState().GetID()
}

func (r *Room) changeState(s state.State) {
	if r.Status() == s.GetID() {
		return
	}
	if err := r.StateMachine.ChangeState(s); err != nil {
		logger.Log.Warnw("room state change rejected", "room_id", r.ID, "from", r.Status(), "to", s.GetID(), "error", err)
		return
	}
	r.touch()
}

// --- actor ---

func (r *Room) start() {
	r.startOnce.Do(func() {
		r.ticker = time.NewTicker(r.settings.TickInterval)
		go r.loop()
	})
}

// Do runs fn on the room goroutine and waits for it. When ctx ends before fn
// starts, fn is skipped and a retryable ConcurrentModification is returned;
// once fn has started Do waits for it to finish.
func (r *Room) Do(ctx context.Context, fn func() error) error {
	cmd := &command{ctx: ctx, fn: fn, reply: make(chan error, 1)}
	select {
	case r.mailbox <- cmd:
	case <-ctx.Done():
		return r.busy(ctx.Err())
	case <-r.done:
		return r.closedErr()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		if cmd.state.CompareAndSwap(cmdPending, cmdAbandoned) {
			return r.busy(ctx.Err())
		}
		return <-cmd.reply
	case <-r.done:
		if cmd.state.CompareAndSwap(cmdPending, cmdAbandoned) {
			return r.closedErr()
		}
		return <-cmd.reply
	}
}

func (r *Room) busy(err error) error {
	return &game.Error{Kind: game.KindConcurrentModification, RoomID: r.ID, Msg: "room busy", Err: err}
}

func (r *Room) closedErr() error {
	return &game.Error{Kind: game.KindRoomNotJoinable, RoomID: r.ID, Msg: "room closed"}
}

// loop 是房间的主循环
func (r *Room) loop() {
	defer close(r.done)
	defer r.ticker.Stop()
	for {
		select {
		case cmd := <-r.mailbox:
			r.run(cmd)
		case <-r.ticker.C:
			r.Update()
		case <-r.closeChan:
			return
		}
	}
}

func (r *Room) run(cmd *command) {
	if !cmd.state.CompareAndSwap(cmdPending, cmdRunning) {
		return
	}
	if err := cmd.ctx.Err(); err != nil {
		cmd.reply <- r.busy(err)
		return
	}
	err := r.safely(cmd.fn)
	r.commit()
	cmd.reply <- err
}

func (r *Room) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Errorw("room command panicked", "room_id", r.ID, "panic", p)
			err = fmt.Errorf("room %s: internal error", r.ID)
		}
	}()
	return fn()
}

// Update 由主循环调用，驱动状态机更新
func (r *Room) Update() {
	r.retryPending()
	if r.Status() == state.IDCancelled {
		r.finishCancel()
		r.commit()
		return
	}
	if cur := r.StateMachine.GetCurrentState(); cur != nil {
		_ = r.safely(func() error {
			cur.OnUpdate()
			return nil
		})
	}
	r.commit()
}

// Close 停止房间主循环，不做结算
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closeChan) })
}

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.settings.ActionTimeout)
}

func (r *Room) touch() { r.version++ }

// commit persists and publishes the room when anything changed.
func (r *Room) commit() {
	if r.version == r.published {
		return
	}
	if r.saved != r.version {
		r.persist()
	}
	r.publish()
	r.published = r.version
}

// --- state.RoomContext ---

func (r *Room) GetID() string { return r.ID }

// CanStart is false while money from an earlier settlement is still owed.
func (r *Room) CanStart() bool {
	return len(r.pending) == 0 && r.engine.CanStart(len(r.funded()))
}

func (r *Room) AllReady() bool {
	seated := r.seated()
	if len(seated) == 0 {
		return false
	}
	for _, s := range seated {
		if !s.Ready {
			return false
		}
	}
	return true
}

func (r *Room) SetReady(playerID string) error {
	s := r.seatOf(playerID)
	if s == nil {
		return game.Errorf(game.KindIllegalMove, "%s is not seated", playerID)
	}
	if !s.Ready {
		s.Ready = true
		r.touch()
	}
	return nil
}

func (r *Room) StartMatch() error {
	if err := r.StateMachine.ChangeState(r.playing); err != nil {
		return err
	}
	r.touch()
	return r.dealHand()
}

func (r *Room) ApplyGameAction(a game.Action) error {
	if !r.inHand[a.PlayerID] {
		return game.Errorf(game.KindIllegalMove, "%s is not dealt in", a.PlayerID)
	}
	if err := r.engine.Apply(a); err != nil {
		switch game.KindOf(err) {
		case game.KindDeckExhausted, game.KindInvalidHandSize:
			r.void(err.Error())
		}
		return err
	}
	r.touch()
	r.afterEngine()
	return nil
}

// --- seats ---

func (r *Room) seated() []*game.Seat {
	out := make([]*game.Seat, 0, len(r.seats))
	for _, s := range r.seats {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) funded() []*game.Seat {
	var out []*game.Seat
	for _, s := range r.seated() {
		if s.Stack.IsPositive() {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) seatOf(playerID string) *game.Seat {
	for _, s := range r.seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (r *Room) removeSeat(s *game.Seat) {
	if s == nil || r.seats[s.Index] != s {
		return
	}
	r.seats[s.Index] = nil
	r.deps.Monitor.AddSeatedPlayers(-1)
	r.touch()
}

func (r *Room) unseatAll() {
	for _, s := range r.seated() {
		r.removeSeat(s)
	}
}

func (r *Room) stacks() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, s := range r.seated() {
		out[s.PlayerID] = s.Stack
	}
	return out
}

func (r *Room) nextKey(kind settlement.Kind) settlement.Key {
	r.ledgerSeq++
	r.touch()
	return settlement.Key{RoomID: r.ID, Seq: r.ledgerSeq, Kind: kind}
}
