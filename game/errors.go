package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a domain error.
type Kind string

const (
	KindIllegalMove            Kind = "illegal_move"
	KindDeckExhausted          Kind = "deck_exhausted"
	KindInvalidHandSize        Kind = "invalid_hand_size"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindRoomCapacity           Kind = "room_capacity"
	KindRoomNotJoinable        Kind = "room_not_joinable"
	KindConcurrentModification Kind = "concurrent_modification"
	KindSettlementConflict     Kind = "settlement_conflict"
	KindNotFound               Kind = "not_found"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrIllegalMove            = &Error{Kind: KindIllegalMove}
	ErrDeckExhausted          = &Error{Kind: KindDeckExhausted}
	ErrInvalidHandSize        = &Error{Kind: KindInvalidHandSize}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrRoomCapacity           = &Error{Kind: KindRoomCapacity}
	ErrRoomNotJoinable        = &Error{Kind: KindRoomNotJoinable}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrSettlementConflict     = &Error{Kind: KindSettlementConflict}
	ErrNotFound               = &Error{Kind: KindNotFound}
)

// Error carries enough context for a client to render the failure.
type Error struct {
	Kind     Kind            `json:"kind"`
	RoomID   string          `json:"room_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Msg      string          `json:"message,omitempty"`
	Err      error           `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.RoomID != "" {
		fmt.Fprintf(&b, " (room=%s", e.RoomID)
		if e.PlayerID != "" {
			fmt.Fprintf(&b, " player=%s", e.PlayerID)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds a new *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Annotate fills in the room and player ids of a domain error without
// changing its kind. Errors that are not *Error pass through untouched.
func Annotate(err error, roomID, playerID string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	if cp.RoomID == "" {
		cp.RoomID = roomID
	}
	if cp.PlayerID == "" {
		cp.PlayerID = playerID
	}
	return &cp
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the caller may resubmit the same action.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
