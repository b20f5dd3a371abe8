// Package settlement moves money between player wallets and room escrow
// wallets. Every settlement is a single ledger transaction keyed by a unique
// reference, so replaying it is safe.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/persistence"
)

// Kind names why money moved.
type Kind string

const (
	KindBuyIn   Kind = "buy_in"
	KindCashOut Kind = "cash_out"
	KindPayout  Kind = "payout"
	KindVoid    Kind = "void"
	KindBust    Kind = "bust"
)

// Credits reports whether the kind only ever pays players out of escrow.
func (k Kind) Credits() bool { return k != KindBuyIn }

func (k Kind) valid() bool {
	switch k {
	case KindBuyIn, KindCashOut, KindPayout, KindVoid, KindBust:
		return true
	}
	return false
}

const escrowPrefix = "escrow:"

// EscrowID is the wallet that holds the chips in play for a room.
func EscrowID(roomID string) string { return escrowPrefix + roomID }

// Key identifies a settlement. Seq is allocated by the room and never reused.
type Key struct {
	RoomID string `json:"room_id"`
	Seq    int64  `json:"seq"`
	Kind   Kind   `json:"kind"`
}

// Reference is the idempotency key stored on the settlement and every leg.
func (k Key) Reference() string {
	return fmt.Sprintf("%s/%d/%s", k.RoomID, k.Seq, k.Kind)
}

// Outcome maps player id to a signed amount. The escrow leg is derived.
type Outcome map[string]decimal.Decimal

// Total is the sum of every player amount.
func (o Outcome) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, amt := range o {
		sum = sum.Add(amt)
	}
	return sum
}

// Equal compares amounts numerically, so "100" and "100.00" match.
func (o Outcome) Equal(other Outcome) bool {
	if len(o) != len(other) {
		return false
	}
	for id, amt := range o {
		v, ok := other[id]
		if !ok || !v.Equal(amt) {
			return false
		}
	}
	return true
}

var errAlreadySettled = errors.New("settlement: reference already settled")

// Engine commits settlements against a wallet store.
type Engine struct {
	store   persistence.WalletStore
	monitor *monitor.Monitor
}

func NewEngine(store persistence.WalletStore, mon *monitor.Monitor) *Engine {
	return &Engine{store: store, monitor: mon}
}

// Settle applies outcome atomically. A replay of a committed key with the same
// outcome returns the transactions written the first time without touching any
// wallet; a different outcome under that key is rejected.
func (e *Engine) Settle(ctx context.Context, key Key, outcome Outcome) ([]models.Transaction, error) {
	if err := validate(key, outcome); err != nil {
		e.monitor.ObserveSettlement(string(key.Kind), string(game.KindOf(err)))
		return nil, err
	}
	ref := key.Reference()

	var txs []models.Transaction
	err := e.store.Transaction(ctx, func(tx persistence.WalletTx) error {
		var err error
		txs, err = e.apply(ctx, tx, key, ref, outcome)
		return err
	})
	if errors.Is(err, errAlreadySettled) {
		// Lost the race on the unique reference; the winner's legs are the result.
		txs, err = e.replay(ctx, ref, outcome)
	}
	if err != nil {
		err = game.Annotate(err, key.RoomID, "")
		result := string(game.KindOf(err))
		if result == "" {
			result = "error"
		}
		e.monitor.ObserveSettlement(string(key.Kind), result)
		logger.Log.Errorw("settlement failed", "room_id", key.RoomID, "seq", key.Seq, "kind", key.Kind, "error", err)
		return nil, err
	}

	e.monitor.ObserveSettlement(string(key.Kind), "ok")
	logger.Log.Infow("settled", "room_id", key.RoomID, "seq", key.Seq, "kind", key.Kind, "legs", len(txs))
	return txs, nil
}

// Record is a committed settlement.
type Record struct {
	Key     Key
	Outcome Outcome
}

// Settled lists what the ledger committed for a room after afterSeq.
func (e *Engine) Settled(ctx context.Context, roomID string, afterSeq int64) ([]Record, error) {
	rows, err := e.store.ListRoomSettlements(ctx, roomID, afterSeq)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		var o Outcome
		if err := json.Unmarshal(row.Outcome, &o); err != nil {
			return nil, fmt.Errorf("settlement: decode %s: %w", row.Reference, err)
		}
		out = append(out, Record{Key: Key{RoomID: row.RoomID, Seq: row.Seq, Kind: Kind(row.Kind)}, Outcome: o})
	}
	return out, nil
}

func (e *Engine) replay(ctx context.Context, ref string, outcome Outcome) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := e.store.Transaction(ctx, func(tx persistence.WalletTx) error {
		prev, err := tx.FindSettlement(ctx, ref)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return game.Errorf(game.KindSettlementConflict, "reference %s vanished", ref)
		}
		if err != nil {
			return err
		}
		if err := sameOutcome(prev, outcome); err != nil {
			return err
		}
		txs, err = tx.ListTransactions(ctx, ref)
		return err
	})
	return txs, err
}

// sameOutcome only lets a settled reference replay the amounts it was
// committed with.
func sameOutcome(prev *models.Settlement, outcome Outcome) error {
	var stored Outcome
	if err := json.Unmarshal(prev.Outcome, &stored); err != nil {
		return fmt.Errorf("settlement: decode %s: %w", prev.Reference, err)
	}
	if !stored.Equal(outcome) {
		return game.Errorf(game.KindIllegalMove, "reference %s reused with a different outcome", prev.Reference)
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, tx persistence.WalletTx, key Key, ref string, outcome Outcome) ([]models.Transaction, error) {
	if prev, err := tx.FindSettlement(ctx, ref); err == nil {
		if err := sameOutcome(prev, outcome); err != nil {
			return nil, err
		}
		return tx.ListTransactions(ctx, ref)
	} else if !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, err
	}

	raw, err := json.Marshal(outcome)
	if err != nil {
		return nil, err
	}
	// Claim the reference first; a concurrent settle of the same key blocks
	// on the unique index and then sees the duplicate.
	err = tx.CreateSettlement(ctx, &models.Settlement{
		Reference: ref,
		RoomID:    key.RoomID,
		Seq:       key.Seq,
		Kind:      string(key.Kind),
		Outcome:   raw,
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		return nil, errAlreadySettled
	}
	if err != nil {
		return nil, err
	}

	escrowID := EscrowID(key.RoomID)
	legs := make(map[string]decimal.Decimal, len(outcome)+1)
	for id, amt := range outcome {
		legs[id] = amt
	}
	if total := outcome.Total(); !total.IsZero() {
		legs[escrowID] = total.Neg()
	}

	// Stable lock order keeps concurrent settlements from deadlocking.
	ids := make([]string, 0, len(legs))
	for id := range legs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		amt := legs[id]

		var w *models.Wallet
		if id == escrowID {
			w, err = tx.EnsureWallet(ctx, id)
		} else {
			w, err = tx.LockWallet(ctx, id)
		}
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return nil, &game.Error{Kind: game.KindNotFound, PlayerID: id, Msg: "wallet not found"}
		}
		if err != nil {
			return nil, err
		}

		before := w.Balance
		after := before.Add(amt)
		if after.IsNegative() {
			return nil, &game.Error{
				Kind:     game.KindInsufficientFunds,
				PlayerID: id,
				Amount:   amt.Neg(),
				Msg:      fmt.Sprintf("balance %s", before.StringFixed(game.MoneyPlaces)),
			}
		}
		w.Balance = after
		if err := tx.SaveWallet(ctx, w); err != nil {
			return nil, err
		}

		t := models.Transaction{
			WalletID:      w.ID,
			UserID:        id,
			Type:          legType(key.Kind, id == escrowID, amt),
			Amount:        amt,
			BalanceBefore: before,
			BalanceAfter:  after,
			Status:        models.StatusCompleted,
			Reference:     ref,
		}
		if err := tx.CreateTransaction(ctx, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func legType(kind Kind, escrow bool, amt decimal.Decimal) models.TransactionType {
	if escrow {
		return models.TxEscrow
	}
	switch kind {
	case KindBuyIn:
		return models.TxGameStake
	case KindPayout:
		if amt.IsPositive() {
			return models.TxGameWin
		}
		return models.TxGameLoss
	case KindBust:
		return models.TxGameLoss
	}
	return models.TxGameRefund
}

func validate(key Key, outcome Outcome) error {
	if key.RoomID == "" || !key.Kind.valid() {
		return game.Errorf(game.KindIllegalMove, "invalid settlement key %q", key.Reference())
	}
	if len(outcome) == 0 {
		return game.Errorf(game.KindIllegalMove, "empty settlement %s", key.Reference())
	}
	for id, amt := range outcome {
		switch {
		case id == "" || strings.HasPrefix(id, escrowPrefix):
			return game.Errorf(game.KindIllegalMove, "invalid settlement party %q", id)
		case !game.Money(amt).Equal(amt):
			return &game.Error{Kind: game.KindIllegalMove, PlayerID: id, Amount: amt, Msg: "amount exceeds money precision"}
		case key.Kind == KindBuyIn && amt.IsPositive():
			return &game.Error{Kind: game.KindIllegalMove, PlayerID: id, Amount: amt, Msg: "buy-in must debit"}
		case key.Kind.Credits() && amt.IsNegative():
			return &game.Error{Kind: game.KindIllegalMove, PlayerID: id, Amount: amt, Msg: "payout must credit"}
		}
	}
	return nil
}
