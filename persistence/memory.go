// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/models"
)

// MemoryStore 内存实现，用于测试和单机运行。
// Transaction 串行执行，在副本上修改，成功后整体提交。
type MemoryStore struct {
	mu           sync.Mutex
	wallets      map[string]models.Wallet
	transactions []models.Transaction
	settlements  map[string]models.Settlement
	snapshots    map[string]models.RoomSnapshot
	hands        []models.HandRecord
	nextWalletID uint
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:     make(map[string]models.Wallet),
		settlements: make(map[string]models.Settlement),
		snapshots:   make(map[string]models.RoomSnapshot),
	}
}

// Transaction 在内存副本上执行 fn，返回错误时丢弃全部修改
func (m *MemoryStore) Transaction(ctx context.Context, fn func(tx WalletTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryWalletTx{
		wallets:      make(map[string]models.Wallet, len(m.wallets)),
		settlements:  make(map[string]models.Settlement, len(m.settlements)),
		committed:    m.transactions,
		nextWalletID: m.nextWalletID,
	}
	for k, v := range m.wallets {
		tx.wallets[k] = v
	}
	for k, v := range m.settlements {
		tx.settlements[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.wallets = tx.wallets
	m.settlements = tx.settlements
	m.transactions = append(m.transactions, tx.pending...)
	m.nextWalletID = tx.nextWalletID
	return nil
}

// GetWallet 读取钱包
func (m *MemoryStore) GetWallet(_ context.Context, userID string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &w, nil
}

// SumCompleted 统计已完成流水之和
func (m *MemoryStore) SumCompleted(_ context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, t := range m.transactions {
		if t.UserID == userID && t.Status == models.StatusCompleted {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// ListWalletTransactions 最近的流水，按时间倒序
func (m *MemoryStore) ListWalletTransactions(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID != userID {
			continue
		}
		out = append(out, m.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListRoomSettlements 房间在 afterSeq 之后的结算
func (m *MemoryStore) ListRoomSettlements(_ context.Context, roomID string, afterSeq int64) ([]models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Settlement
	for _, st := range m.settlements {
		if st.RoomID == roomID && st.Seq > afterSeq {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// SaveHandRecord 保存牌局记录
func (m *MemoryStore) SaveHandRecord(_ context.Context, rec *models.HandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uint(len(m.hands) + 1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.hands = append(m.hands, *rec)
	return nil
}

// HandRecords 返回某房间的牌局记录
func (m *MemoryStore) HandRecords(roomID string) []models.HandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HandRecord
	for _, h := range m.hands {
		if h.RoomID == roomID {
			out = append(out, h)
		}
	}
	return out
}

// SaveSnapshot 保存房间快照
func (m *MemoryStore) SaveSnapshot(_ context.Context, snap models.RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Data = append([]byte(nil), snap.Data...)
	m.snapshots[snap.RoomID] = snap
	return nil
}

// LoadSnapshot 加载房间快照
func (m *MemoryStore) LoadSnapshot(_ context.Context, roomID string) (models.RoomSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[roomID]
	if !ok {
		return models.RoomSnapshot{}, ErrRecordNotFound
	}
	snap.Data = append([]byte(nil), snap.Data...)
	return snap, nil
}

// DeleteSnapshot 删除房间快照
func (m *MemoryStore) DeleteSnapshot(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, roomID)
	return nil
}

// ListSnapshotRooms 列出有快照的房间
func (m *MemoryStore) ListSnapshotRooms(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type memoryWalletTx struct {
	wallets      map[string]models.Wallet
	settlements  map[string]models.Settlement
	committed    []models.Transaction
	pending      []models.Transaction
	nextWalletID uint
}

func (t *memoryWalletTx) FindSettlement(_ context.Context, reference string) (*models.Settlement, error) {
	s, ok := t.settlements[reference]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &s, nil
}

func (t *memoryWalletTx) LockWallet(_ context.Context, userID string) (*models.Wallet, error) {
	w, ok := t.wallets[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &w, nil
}

func (t *memoryWalletTx) EnsureWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if _, ok := t.wallets[userID]; !ok {
		t.nextWalletID++
		now := time.Now()
		t.wallets[userID] = models.Wallet{
			ID:        t.nextWalletID,
			UserID:    userID,
			Balance:   decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return t.LockWallet(ctx, userID)
}

func (t *memoryWalletTx) SaveWallet(_ context.Context, w *models.Wallet) error {
	if _, ok := t.wallets[w.UserID]; !ok {
		return ErrRecordNotFound
	}
	w.UpdatedAt = time.Now()
	t.wallets[w.UserID] = *w
	return nil
}

func (t *memoryWalletTx) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	t.pending = append(t.pending, *tx)
	return nil
}

func (t *memoryWalletTx) CreateSettlement(_ context.Context, s *models.Settlement) error {
	if _, ok := t.settlements[s.Reference]; ok {
		return ErrDuplicate
	}
	s.ID = uint(len(t.settlements) + 1)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	t.settlements[s.Reference] = *s
	return nil
}

func (t *memoryWalletTx) ListTransactions(_ context.Context, reference string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, list := range [][]models.Transaction{t.committed, t.pending} {
		for _, tx := range list {
			if tx.Reference == reference {
				out = append(out, tx)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
