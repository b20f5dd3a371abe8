// Package game holds the types shared by the room and the game engines.
package game

import (
	"github.com/shopspring/decimal"
)

// Type identifies which engine a room runs.
type Type string

const (
	Poker Type = "poker"
	Blot  Type = "blot"
)

func (t Type) Valid() bool { return t == Poker || t == Blot }

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Seat is a room slot bound to one player. Stack is the player's chips at
// the start of the current hand; engines track in-hand amounts themselves.
type Seat struct {
	PlayerID string          `json:"player_id"`
	Index    int             `json:"index"`
	Role     Role            `json:"role"`
	Stack    decimal.Decimal `json:"stack"`
	Ready    bool            `json:"ready"`
}

// Participant is a seat dealt into a hand.
type Participant struct {
	PlayerID string
	Seat     int
	Stack    decimal.Decimal
}

// Outcome describes a finished hand.
type Outcome struct {
	HandSeq int64 `json:"hand_seq"`
	// Stacks holds every participant's stack after the hand. Nil when the
	// game does not move money between hands.
	Stacks  map[string]decimal.Decimal `json:"stacks,omitempty"`
	Winners []string                   `json:"winners"`
	Summary any                        `json:"summary,omitempty"`
}

// Engine is the capability a room needs from a game. Implementations are not
// safe for concurrent use; the owning room serialises every call.
type Engine interface {
	Type() Type
	// CanStart reports whether n funded, seated players are enough to deal.
	CanStart(n int) bool
	// Start deals a new hand. Participants arrive in seat order.
	Start(ps []Participant) error
	// Apply validates and applies a in-hand action. A rejected action
	// leaves the engine untouched.
	Apply(a Action) error
	CurrentPlayer() string
	IsHandTerminal() bool
	HandOutcome() Outcome
	IsMatchOver(stacks map[string]decimal.Decimal) bool
	// MatchPayout distributes the escrowed stacks once the match is over.
	MatchPayout(stacks map[string]decimal.Decimal) map[string]decimal.Decimal
	// Forfeit removes a player from the running hand and returns the part
	// of their stack that is not committed to the pot.
	Forfeit(playerID string) (decimal.Decimal, error)
	PublicView() any
	PrivateView(playerID string) any
	Marshal() ([]byte, error)
	Restore(data []byte) error
}

// Money amounts carry at most this many fractional digits.
const MoneyPlaces = 8

// Money truncates d to MoneyPlaces.
func Money(d decimal.Decimal) decimal.Decimal { return d.Truncate(MoneyPlaces) }

// Split divides total into n equal shares truncated to MoneyPlaces and
// returns the share and the leftover that could not be split.
func Split(total decimal.Decimal, n int) (share, remainder decimal.Decimal) {
	if n <= 0 {
		return decimal.Zero, total
	}
	return total.QuoRem(decimal.NewFromInt(int64(n)), MoneyPlaces)
}
