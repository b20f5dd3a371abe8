// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现，负责钱包、账本和牌局记录
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.Settlement{},
		&models.HandRecord{},
	)
}

// Transaction 在一个数据库事务中执行 fn
func (p *GormPostgreSQL) Transaction(ctx context.Context, fn func(tx WalletTx) error) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormWalletTx{db: tx})
	})
}

// GetWallet 读取钱包（不加锁）
func (p *GormPostgreSQL) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	if err := p.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

// SumCompleted 统计已完成流水之和
func (p *GormPostgreSQL) SumCompleted(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := p.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// ListWalletTransactions 最近的流水，按时间倒序
func (p *GormPostgreSQL) ListWalletTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRoomSettlements 房间在 afterSeq 之后的结算
func (p *GormPostgreSQL) ListRoomSettlements(ctx context.Context, roomID string, afterSeq int64) ([]models.Settlement, error) {
	var out []models.Settlement
	err := p.db.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq").
		Find(&out).Error
	return out, err
}

// SaveHandRecord 保存牌局记录
func (p *GormPostgreSQL) SaveHandRecord(ctx context.Context, rec *models.HandRecord) error {
	return p.db.WithContext(ctx).Create(rec).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormWalletTx struct {
	db *gorm.DB
}

func (t *gormWalletTx) FindSettlement(ctx context.Context, reference string) (*models.Settlement, error) {
	var s models.Settlement
	if err := t.db.WithContext(ctx).Where("reference = ?", reference).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (t *gormWalletTx) LockWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&w).Error
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (t *gormWalletTx) EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w := models.Wallet{UserID: userID, Balance: decimal.Zero}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&w).Error
	if err != nil {
		return nil, err
	}
	return t.LockWallet(ctx, userID)
}

func (t *gormWalletTx) SaveWallet(ctx context.Context, w *models.Wallet) error {
	return t.db.WithContext(ctx).Model(w).Update("balance", w.Balance).Error
}

func (t *gormWalletTx) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return t.db.WithContext(ctx).Create(tx).Error
}

func (t *gormWalletTx) CreateSettlement(ctx context.Context, s *models.Settlement) error {
	return translate(t.db.WithContext(ctx).Create(s).Error)
}

func (t *gormWalletTx) ListTransactions(ctx context.Context, reference string) ([]models.Transaction, error) {
	var out []models.Transaction
	err := t.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("user_id").
		Find(&out).Error
	return out, err
}

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
