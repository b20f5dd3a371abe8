// models/models.go
package models

import (
	"time"
)

// TransactionType 账本流水类型
type TransactionType string

const (
	TxDeposit       TransactionType = "deposit"
	TxWithdrawal    TransactionType = "withdrawal"
	TxGameStake     TransactionType = "game_stake"
	TxGameWin       TransactionType = "game_win"
	TxGameLoss      TransactionType = "game_loss"
	TxReferralBonus TransactionType = "referral_bonus"
	TxGameRefund    TransactionType = "game_refund"
	TxEscrow        TransactionType = "escrow"
)

// TransactionStatus 流水状态
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// RoomSnapshot 房间快照的持久化形式
type RoomSnapshot struct {
	RoomID  string    `json:"room_id"`
	Version int       `json:"version"`
	Data    []byte    `json:"data"`
	SavedAt time.Time `json:"saved_at"`
}

// HandPlayer 牌局记录中的玩家信息
type HandPlayer struct {
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
	Stack  string `json:"stack"`
}
