package game

import (
	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/cards"
)

type ActionType string

const (
	// poker
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "all_in"

	// blot
	ActionSelectTrump ActionType = "select_trump"
	ActionAnnounce    ActionType = "announce"
	ActionPlayCard    ActionType = "play_card"

	// lifecycle
	ActionJoin    ActionType = "join"
	ActionSit     ActionType = "sit"
	ActionStandUp ActionType = "stand_up"
	ActionLeave   ActionType = "leave"
	ActionReady   ActionType = "ready"
)

// IsLifecycle reports whether t is handled by the room rather than an engine.
func (t ActionType) IsLifecycle() bool {
	switch t {
	case ActionJoin, ActionSit, ActionStandUp, ActionLeave, ActionReady:
		return true
	}
	return false
}

// Action is a single player request. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType `json:"type"`
	PlayerID string     `json:"player_id,omitempty"`

	// Amount is the raise-to total for raise and the buy-in for sit.
	Amount decimal.Decimal `json:"amount"`

	// select_trump: Suit names the trump, Pass declines.
	Suit *cards.Suit `json:"suit,omitempty"`
	Pass bool        `json:"pass,omitempty"`

	Card  *cards.Card  `json:"card,omitempty"`
	Cards []cards.Card `json:"cards,omitempty"`

	Role Role `json:"role,omitempty"`
	Seat *int `json:"seat,omitempty"`
}
