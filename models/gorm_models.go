// models/gorm_models.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet 钱包，余额为所有已完成流水之和
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"uniqueIndex;size:128;not null" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction 只追加的账本流水
type Transaction struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID      uint              `gorm:"index;not null" json:"wallet_id"`
	UserID        string            `gorm:"index;size:128;not null" json:"user_id"`
	Type          TransactionType   `gorm:"size:32;not null" json:"type"`
	Amount        decimal.Decimal   `gorm:"type:numeric(30,8);not null" json:"amount"`
	BalanceBefore decimal.Decimal   `gorm:"type:numeric(30,8);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal   `gorm:"type:numeric(30,8);not null" json:"balance_after"`
	Status        TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	Reference     string            `gorm:"index;size:255" json:"reference"`
	CreatedAt     time.Time         `json:"created_at"`
}

// BeforeCreate 补全主键
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Settlement 结算幂等记录，Reference 唯一
type Settlement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Reference string         `gorm:"uniqueIndex;size:255;not null" json:"reference"`
	RoomID    string         `gorm:"index;size:128;not null" json:"room_id"`
	Seq       int64          `gorm:"not null" json:"seq"`
	Kind      string         `gorm:"size:32;not null" json:"kind"`
	Outcome   datatypes.JSON `gorm:"type:jsonb;not null" json:"outcome"`
	CreatedAt time.Time      `json:"created_at"`
}

// HandRecord 牌局记录
type HandRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoomID    string         `gorm:"index;size:128;not null" json:"room_id"`
	GameType  string         `gorm:"size:16;not null" json:"game_type"`
	HandSeq   int64          `gorm:"not null" json:"hand_seq"`
	Players   datatypes.JSON `gorm:"type:jsonb;not null" json:"players"`
	Result    datatypes.JSON `gorm:"type:jsonb;not null" json:"result"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}
