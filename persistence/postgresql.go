// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wfunc/cardroom/models"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

// PostgreSQL 保存房间快照的数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS room_snapshots (
            room_id VARCHAR(128) PRIMARY KEY,
            version INT NOT NULL,
            data JSONB NOT NULL,
            saved_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_room_snapshots_saved_at ON room_snapshots(saved_at);
    `)
	return err
}

// SaveSnapshot 保存房间快照 (UPSERT)
func (p *PostgreSQL) SaveSnapshot(ctx context.Context, snap models.RoomSnapshot) error {
	query := `
        INSERT INTO room_snapshots (room_id, version, data, saved_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (room_id)
        DO UPDATE SET version = $2, data = $3, saved_at = $4
    `
	_, err := p.db.ExecContext(ctx, query, snap.RoomID, snap.Version, snap.Data, snap.SavedAt)
	return err
}

// LoadSnapshot 加载房间快照
func (p *PostgreSQL) LoadSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	snap := models.RoomSnapshot{RoomID: roomID}
	query := `SELECT version, data, saved_at FROM room_snapshots WHERE room_id = $1`
	err := p.db.QueryRowContext(ctx, query, roomID).Scan(&snap.Version, &snap.Data, &snap.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoomSnapshot{}, ErrRecordNotFound
		}
		return models.RoomSnapshot{}, err
	}
	return snap, nil
}

// DeleteSnapshot 删除房间快照，不存在时不报错
func (p *PostgreSQL) DeleteSnapshot(ctx context.Context, roomID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM room_snapshots WHERE room_id = $1`, roomID)
	return err
}

// ListSnapshotRooms 列出有快照的房间，用于重启恢复
func (p *PostgreSQL) ListSnapshotRooms(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT room_id FROM room_snapshots ORDER BY saved_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
