package room

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/gamestate"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/settlement"
)

// Sink receives room events; broadcast provides the implementations.
type Sink interface {
	// PublishState goes to everyone in the room.
	PublishState(ctx context.Context, roomID string, state []byte) error
	// PublishPrivate goes to one player only and may carry hidden cards.
	PublishPrivate(ctx context.Context, roomID, playerID string, state []byte) error
}

// Settler commits money movements.
type Settler interface {
	Settle(ctx context.Context, key settlement.Key, outcome settlement.Outcome) ([]models.Transaction, error)
}

// Ledger reports settlements already committed for a room, see
// settlement.Engine.Settled.
type Ledger interface {
	Settled(ctx context.Context, roomID string, afterSeq int64) ([]settlement.Record, error)
}

// SnapshotStore keeps the last state of every room.
type SnapshotStore interface {
	Save(ctx context.Context, roomID string, snap gamestate.Snapshot) error
	Load(ctx context.Context, roomID string) (gamestate.Snapshot, error)
	Delete(ctx context.Context, roomID string) error
}

// Scheduler runs deferred tasks, see timer.TimerManager.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64)
}

// Deps are the collaborators shared by every room.
type Deps struct {
	Settler Settler
	// Ledger is consulted on restore; without it the snapshot sequence is trusted.
	Ledger Ledger
	Store  SnapshotStore
	Sink   Sink
	Timers Scheduler
	// Hands is optional.
	Hands   persistence.HandRecorder
	Monitor *monitor.Monitor
	// NewDeck overrides the shuffled decks, for tests.
	NewDeck func(game.Type) *cards.Deck
}

// Settings tune every room a manager creates.
type Settings struct {
	TickInterval   time.Duration
	AutoStartTicks int
	NextHandDelay  time.Duration
	ActionTimeout  time.Duration
	MailboxSize    int
	MinBuyInBB     int64
	MaxBuyInBB     int64
	MaxPokerSeats  int
	BlotPlayers    int
	BlotTarget     int
	// DefaultBigBlind is the poker stake when a room is created without one.
	DefaultBigBlind decimal.Decimal
}

// SettingsFromConfig maps the room, poker and blot config sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	bb, _ := cfg.Poker.BigBlindAmount()
	return Settings{
		DefaultBigBlind: bb,
		TickInterval:    cfg.Room.TickInterval,
		AutoStartTicks:  cfg.Room.AutoStartTicks,
		NextHandDelay:   cfg.Room.NextHandDelay,
		ActionTimeout:   cfg.Room.ActionTimeout,
		MailboxSize:     cfg.Room.MailboxSize,
		MinBuyInBB:      cfg.Poker.MinBuyInBB,
		MaxBuyInBB:      cfg.Poker.MaxBuyInBB,
		MaxPokerSeats:   cfg.Poker.MaxSeats,
		BlotPlayers:     cfg.Blot.Players,
		BlotTarget:      cfg.Blot.MatchTarget,
	}
}

func (s Settings) withDefaults() Settings {
	if s.TickInterval <= 0 {
		s.TickInterval = 100 * time.Millisecond
	}
	if s.AutoStartTicks <= 0 {
		s.AutoStartTicks = 100
	}
	if s.ActionTimeout <= 0 {
		s.ActionTimeout = 5 * time.Second
	}
	if s.MailboxSize <= 0 {
		s.MailboxSize = 64
	}
	if s.MinBuyInBB <= 0 {
		s.MinBuyInBB = 20
	}
	if s.MaxBuyInBB < s.MinBuyInBB {
		s.MaxBuyInBB = s.MinBuyInBB * 10
	}
	if s.MaxPokerSeats <= 0 {
		s.MaxPokerSeats = 9
	}
	if s.BlotPlayers == 0 {
		s.BlotPlayers = 2
	}
	return s
}
