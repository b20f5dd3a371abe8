package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Errorf(KindIllegalMove, "not your turn")
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("apply: %w", err)
	assert.ErrorIs(t, wrapped, ErrIllegalMove)
	assert.Equal(t, KindIllegalMove, KindOf(wrapped))
}

func TestAnnotate(t *testing.T) {
	base := Errorf(KindInsufficientFunds, "buy-in")
	base.Amount = decimal.NewFromInt(100)

	err := Annotate(base, "room-1", "alice")
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "room-1", e.RoomID)
	assert.Equal(t, "alice", e.PlayerID)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(100)))
	assert.Empty(t, base.RoomID, "original must not be mutated")

	plain := errors.New("boom")
	assert.Same(t, plain, Annotate(plain, "room-1", "alice"))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Wrap(KindConcurrentModification, errors.New("deadline"), "mailbox")))
	assert.False(t, Retryable(Errorf(KindIllegalMove, "x")))
	assert.False(t, Retryable(nil))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		total     string
		n         int
		share     string
		remainder string
	}{
		{"200", 2, "100", "0"},
		{"100", 3, "33.33333333", "0.00000001"},
		{"0.00000001", 2, "0", "0.00000001"},
		{"301", 4, "75.25", "0"},
	}
	for _, tt := range tests {
		share, rem := Split(decimal.RequireFromString(tt.total), tt.n)
		assert.True(t, share.Equal(decimal.RequireFromString(tt.share)), "%s/%d share %s", tt.total, tt.n, share)
		assert.True(t, rem.Equal(decimal.RequireFromString(tt.remainder)), "%s/%d remainder %s", tt.total, tt.n, rem)
	}
}

func TestActionType_IsLifecycle(t *testing.T) {
	assert.True(t, ActionSit.IsLifecycle())
	assert.True(t, ActionReady.IsLifecycle())
	assert.False(t, ActionRaise.IsLifecycle())
	assert.False(t, ActionPlayCard.IsLifecycle())
}
