// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/models"
)

// WalletTx 是一个数据库事务内可用的钱包操作
type WalletTx interface {
	// FindSettlement returns ErrRecordNotFound when reference was never settled.
	FindSettlement(ctx context.Context, reference string) (*models.Settlement, error)
	// LockWallet loads a wallet with a row lock held until the transaction ends.
	LockWallet(ctx context.Context, userID string) (*models.Wallet, error)
	// EnsureWallet creates the wallet if missing and locks it.
	EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error)
	SaveWallet(ctx context.Context, w *models.Wallet) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	// CreateSettlement returns ErrDuplicate if the reference exists.
	CreateSettlement(ctx context.Context, s *models.Settlement) error
	ListTransactions(ctx context.Context, reference string) ([]models.Transaction, error)
}

// WalletStore 钱包与账本存储
type WalletStore interface {
	// Transaction runs fn atomically; any error rolls every write back.
	Transaction(ctx context.Context, fn func(tx WalletTx) error) error
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	// SumCompleted sums the completed ledger entries of a wallet.
	SumCompleted(ctx context.Context, userID string) (decimal.Decimal, error)
	ListWalletTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	// ListRoomSettlements returns a room's settlements with Seq > afterSeq, oldest first.
	ListRoomSettlements(ctx context.Context, roomID string, afterSeq int64) ([]models.Settlement, error)
}

// SnapshotStore 房间快照的持久层
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.RoomSnapshot) error
	LoadSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error)
	DeleteSnapshot(ctx context.Context, roomID string) error
	ListSnapshotRooms(ctx context.Context) ([]string, error)
}

// HandRecorder 保存牌局记录
type HandRecorder interface {
	SaveHandRecord(ctx context.Context, rec *models.HandRecord) error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)
