// state/interfaces.go
package state

import "github.com/wfunc/cardroom/game"

// RoomContext is what a state needs from the room that owns it. Every method
// is called from the room's own goroutine.
type RoomContext interface {
	GetID() string
	// CanStart reports whether the seated, funded players are enough to deal.
	CanStart() bool
	// AllReady reports whether every seated player has sent ready.
	AllReady() bool
	SetReady(playerID string) error
	// StartMatch moves the room to playing and deals the first hand.
	StartMatch() error
	// ApplyGameAction forwards an in-hand action to the game engine.
	ApplyGameAction(a game.Action) error
}
