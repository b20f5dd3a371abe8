package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/settlement"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDepositCreatesWallet(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletService(persistence.NewMemoryStore())

	tx, err := svc.Deposit(ctx, "alice", d("250.5"), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxDeposit, tx.Type)
	assert.True(t, tx.BalanceAfter.Equal(d("250.5")))

	bal, err := svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("250.5")))
}

func TestDepositIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletService(persistence.NewMemoryStore())

	first, err := svc.Deposit(ctx, "alice", d("100"), "pay-1")
	require.NoError(t, err)
	second, err := svc.Deposit(ctx, "alice", d("100"), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	bal, err := svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("100")))
}

func TestReusedReferenceMustMatch(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletService(persistence.NewMemoryStore())

	_, err := svc.Deposit(ctx, "alice", d("100"), "pay-1")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "alice", d("300"), "pay-1")
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	_, err = svc.Deposit(ctx, "bob", d("100"), "pay-1")
	assert.ErrorIs(t, err, game.ErrIllegalMove)

	bal, err := svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("100")))
	_, err = svc.Balance(ctx, "bob")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestDepositRejectsBadAmounts(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletService(persistence.NewMemoryStore())

	for _, amt := range []string{"0", "-5", "0.000000001"} {
		_, err := svc.Deposit(ctx, "alice", d(amt), "ref-"+amt)
		assert.ErrorIs(t, err, game.ErrIllegalMove, amt)
	}
	_, err := svc.Deposit(ctx, "alice", d("1"), "")
	assert.ErrorIs(t, err, game.ErrIllegalMove)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	svc := NewWalletService(persistence.NewMemoryStore())

	_, err := svc.Withdraw(ctx, "nobody", d("1"), "w-0")
	assert.ErrorIs(t, err, game.ErrNotFound)

	_, err = svc.Deposit(ctx, "alice", d("10"), "pay-1")
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, "alice", d("10.00000001"), "w-1")
	assert.ErrorIs(t, err, game.ErrInsufficientFunds)

	tx, err := svc.Withdraw(ctx, "alice", d("4"), "w-2")
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(d("-4")))

	bal, err := svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(d("6")))
}

func TestReconcileAfterSettlements(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	svc := NewWalletService(store)
	eng := settlement.NewEngine(store, nil)

	_, err := svc.Deposit(ctx, "alice", d("300"), "pay-a")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "bob", d("300"), "pay-b")
	require.NoError(t, err)

	_, err = eng.Settle(ctx, settlement.Key{RoomID: "r", Seq: 1, Kind: settlement.KindBuyIn},
		settlement.Outcome{"alice": d("-100"), "bob": d("-100")})
	require.NoError(t, err)
	_, err = eng.Settle(ctx, settlement.Key{RoomID: "r", Seq: 2, Kind: settlement.KindPayout},
		settlement.Outcome{"alice": d("133.33333333"), "bob": d("66.66666667")})
	require.NoError(t, err)

	for _, id := range []string{"alice", "bob", settlement.EscrowID("r")} {
		r, err := svc.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, r.Consistent(), id)
	}

	hist, err := svc.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, models.TxGameWin, hist[0].Type)
}

func TestBalanceUnknownWallet(t *testing.T) {
	_, err := NewWalletService(persistence.NewMemoryStore()).Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, game.ErrNotFound)
}
