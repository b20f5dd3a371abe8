// services/wallet_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
)

type WalletService struct {
	store persistence.WalletStore
}

func NewWalletService(store persistence.WalletStore) *WalletService {
	return &WalletService{store: store}
}

// Deposit 充值（原子操作），reference 相同的请求只入账一次
func (s *WalletService) Deposit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, &game.Error{Kind: game.KindIllegalMove, PlayerID: userID, Amount: amount, Msg: "deposit must be positive"}
	}
	return s.move(ctx, userID, amount, models.TxDeposit, reference)
}

// Withdraw 提现，余额不足时返回 InsufficientFunds
func (s *WalletService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, &game.Error{Kind: game.KindIllegalMove, PlayerID: userID, Amount: amount, Msg: "withdrawal must be positive"}
	}
	return s.move(ctx, userID, amount.Neg(), models.TxWithdrawal, reference)
}

func (s *WalletService) move(ctx context.Context, userID string, amount decimal.Decimal, typ models.TransactionType, reference string) (*models.Transaction, error) {
	if !game.Money(amount).Equal(amount) {
		return nil, &game.Error{Kind: game.KindIllegalMove, PlayerID: userID, Amount: amount, Msg: "amount exceeds money precision"}
	}
	if reference == "" {
		return nil, game.Errorf(game.KindIllegalMove, "%s needs a reference", typ)
	}
	ref := fmt.Sprintf("%s/%s", typ, reference)

	var out models.Transaction
	err := s.store.Transaction(ctx, func(tx persistence.WalletTx) error {
		if done, err := tx.FindSettlement(ctx, ref); err == nil {
			var stored map[string]decimal.Decimal
			if err := json.Unmarshal(done.Outcome, &stored); err != nil {
				return err
			}
			if amt, ok := stored[userID]; !ok || len(stored) != 1 || !amt.Equal(amount) {
				return &game.Error{Kind: game.KindIllegalMove, PlayerID: userID, Amount: amount, Msg: "reference " + reference + " reused with a different amount"}
			}
			prev, err := tx.ListTransactions(ctx, ref)
			if err != nil {
				return err
			}
			if len(prev) == 0 {
				return game.Errorf(game.KindSettlementConflict, "reference %s has no ledger entry", ref)
			}
			out = prev[0]
			return nil
		} else if !errors.Is(err, persistence.ErrRecordNotFound) {
			return err
		}

		raw, _ := json.Marshal(map[string]decimal.Decimal{userID: amount})
		if err := tx.CreateSettlement(ctx, &models.Settlement{Reference: ref, Kind: string(typ), Outcome: raw}); err != nil {
			if errors.Is(err, persistence.ErrDuplicate) {
				return game.Wrap(game.KindConcurrentModification, err, "concurrent "+string(typ))
			}
			return err
		}

		var w *models.Wallet
		var err error
		if typ == models.TxDeposit {
			w, err = tx.EnsureWallet(ctx, userID)
		} else {
			w, err = tx.LockWallet(ctx, userID)
		}
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return &game.Error{Kind: game.KindNotFound, PlayerID: userID, Msg: "wallet not found"}
		}
		if err != nil {
			return err
		}

		before := w.Balance
		w.Balance = before.Add(amount)
		if w.Balance.IsNegative() {
			return &game.Error{Kind: game.KindInsufficientFunds, PlayerID: userID, Amount: amount.Neg()}
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}

		out = models.Transaction{
			WalletID:      w.ID,
			UserID:        userID,
			Type:          typ,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  w.Balance,
			Status:        models.StatusCompleted,
			Reference:     ref,
		}
		return tx.CreateTransaction(ctx, &out)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infow("wallet updated", "player_id", userID, "type", typ, "amount", amount.String(), "reference", ref)
	return &out, nil
}

// Balance 当前余额，钱包不存在时返回 NotFound
func (s *WalletService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return decimal.Zero, &game.Error{Kind: game.KindNotFound, PlayerID: userID, Msg: "wallet not found"}
	}
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// History 最近的流水
func (s *WalletService) History(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	return s.store.ListWalletTransactions(ctx, userID, limit)
}

// Reconciliation 缓存余额与账本之和的对比结果
type Reconciliation struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Ledger  decimal.Decimal `json:"ledger"`
}

func (r Reconciliation) Consistent() bool { return r.Balance.Equal(r.Ledger) }

// Reconcile 校验钱包余额等于已完成流水之和
func (s *WalletService) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := s.store.SumCompleted(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	r := Reconciliation{UserID: userID, Balance: bal, Ledger: sum}
	if !r.Consistent() {
		logger.Log.Errorw("wallet out of balance", "player_id", userID, "balance", bal.String(), "ledger", sum.String())
	}
	return r, nil
}
