package state

import (
	"errors"
	"sync"

	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
)

// State ids double as the room status reported to clients.
const (
	IDWaiting   = "waiting"
	IDPlaying   = "in_progress"
	IDFinished  = "finished"
	IDCancelled = "cancelled"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	HandleAction(a game.Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现。OnEnter/OnExit 在锁内调用，不能在其中再切换状态。
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	// 检查是否有转换条件
	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

func (s *RoomStateBase) OnUpdate() {}

func (s *RoomStateBase) HandleAction(a game.Action) error {
	return game.Errorf(game.KindIllegalMove, "%s not allowed while %s", a.Type, s.ID)
}

// NewWaitingState creates a new waiting state. autoStartTicks is the number
// of updates a startable room waits for ready before dealing anyway.
func NewWaitingState(room RoomContext, autoStartTicks int) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{
			ID:   IDWaiting,
			Room: room,
		},
		autoStart: autoStartTicks,
	}
}

// 等待状态
type WaitingState struct {
	RoomStateBase
	autoStart int
	timer     int
}

func (s *WaitingState) OnEnter() {
	s.timer = s.autoStart
}

// Remaining 距离自动开局还剩的 tick 数
func (s *WaitingState) Remaining() int { return s.timer }

// SetRemaining 恢复快照时使用
func (s *WaitingState) SetRemaining(ticks int) { s.timer = ticks }

func (s *WaitingState) OnUpdate() {
	if !s.Room.CanStart() {
		s.timer = s.autoStart
		return
	}
	if s.Room.AllReady() {
		s.start("all ready")
		return
	}
	s.timer--
	if s.timer <= 0 {
		s.start("countdown")
	}
}

func (s *WaitingState) HandleAction(a game.Action) error {
	if a.Type != game.ActionReady {
		return s.RoomStateBase.HandleAction(a)
	}
	if err := s.Room.SetReady(a.PlayerID); err != nil {
		return err
	}
	if s.Room.CanStart() && s.Room.AllReady() {
		s.start("all ready")
	}
	return nil
}

func (s *WaitingState) start(reason string) {
	s.timer = s.autoStart
	if err := s.Room.StartMatch(); err != nil {
		logger.Log.Warnw("match start failed", "room_id", s.Room.GetID(), "reason", reason, "error", err)
		return
	}
	logger.Log.Infow("match started", "room_id", s.Room.GetID(), "reason", reason)
}

func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{RoomStateBase: RoomStateBase{ID: IDPlaying, Room: room}}
}

// 游戏进行状态
type PlayingState struct {
	RoomStateBase
}

func (s *PlayingState) HandleAction(a game.Action) error {
	if a.Type == game.ActionReady {
		// 只在等待阶段有意义
		return nil
	}
	if a.Type.IsLifecycle() {
		return s.RoomStateBase.HandleAction(a)
	}
	return s.Room.ApplyGameAction(a)
}

// NewFinishedState 结束状态只是过渡，房间清空后立即回到等待
func NewFinishedState(room RoomContext) *RoomStateBase {
	return &RoomStateBase{ID: IDFinished, Room: room}
}

func NewCancelledState(room RoomContext) *CancelledState {
	return &CancelledState{RoomStateBase: RoomStateBase{ID: IDCancelled, Room: room}}
}

// 取消状态，终态
type CancelledState struct {
	RoomStateBase
}

func (s *CancelledState) HandleAction(a game.Action) error {
	return game.Errorf(game.KindRoomNotJoinable, "room %s is cancelled", s.Room.GetID())
}
