package store

import (
	"context"
	"sort"
	"sync"

	"github.com/brbranch/semstore/internal/model"
)

// MemoryTable はテスト・一時利用向けのインメモリTable実装
type MemoryTable struct {
	mu     sync.RWMutex
	rows   []*model.Record
	dim    int
	closed bool
}

// NewMemoryTable はMemoryTableを作成する
func NewMemoryTable(dim int) *MemoryTable {
	if dim <= 0 {
		dim = model.DefaultDimension
	}
	return &MemoryTable{dim: dim}
}

// Append はレコードを追加する
func (t *MemoryTable) Append(ctx context.Context, records []*model.Record) error {
	if err := validateRecords(records, t.dim); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	// ディープコピー
	for _, r := range records {
		t.rows = append(t.rows, r.Clone())
	}
	return nil
}

// DeleteWhere は条件に一致する行を削除する
func (t *MemoryTable) DeleteWhere(ctx context.Context, pred Predicate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	kept := t.rows[:0]
	for _, r := range t.rows {
		if !pred.Match(r) {
			kept = append(kept, r)
		}
	}
	// 切り詰めた後ろ側の参照を外す
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	return nil
}

// ScanAll は新しい順に最大limit件を返す
func (t *MemoryTable) ScanAll(ctx context.Context, limit int) ([]*model.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}

	out := make([]*model.Record, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchNearest は全行をスキャンしてL2距離で並べる
func (t *MemoryTable) SearchNearest(ctx context.Context, query []float32, limit int, filter *Predicate) ([]Neighbor, error) {
	if err := checkQuery(query, t.dim); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}

	neighbors := []Neighbor{}
	for _, r := range t.rows {
		if filter != nil && !filter.Match(r) {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Record:   r.Clone(),
			Distance: L2Distance(query, r.Vector),
		})
	}

	return rankNeighbors(neighbors, limit), nil
}

// Get はidの行を返す（重複時は最新のもの）
func (t *MemoryTable) Get(ctx context.Context, id string) (*model.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}

	var found *model.Record
	for _, r := range t.rows {
		if r.ID == id && (found == nil || r.Timestamp > found.Timestamp) {
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

// Dimension はベクトル次元を返す
func (t *MemoryTable) Dimension() int {
	return t.dim
}

// Len は行数を返す
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Close はテーブルをクローズする
func (t *MemoryTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = nil
	t.closed = true
	return nil
}

var _ Table = (*MemoryTable)(nil)
