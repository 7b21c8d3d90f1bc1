//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brbranch/semstore/internal/model"
)

func init() {
	sqlite_vec.Auto()
}

// vecMaxK はvec0のKNNクエリで指定できるkの上限
const vecMaxK = 4096

// VecTable はsqlite-vecのvec0仮想テーブルを使用したTable実装
//
// record_id と timestamp はメタデータ列でKNN時の絞り込みに使い、
// text と created_at は補助列（+）として保持する。
type VecTable struct {
	mu     sync.RWMutex
	db     *sql.DB
	dim    int
	logger *slog.Logger
}

// NewVecTable はdbPathのvec0テーブルを開く。無ければ作成する
func NewVecTable(ctx context.Context, dbPath string, dim int, logger *slog.Logger) (*VecTable, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrateVec(ctx, db, dim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}

	return &VecTable{db: db, dim: dim, logger: logger}, nil
}

func migrateVec(ctx context.Context, db *sql.DB, dim int) error {
	const metaDDL = `
CREATE TABLE IF NOT EXISTS table_meta (
	singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
	dimension INTEGER NOT NULL,
	metric    TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return fmt.Errorf("creating table_meta: %w", err)
	}
	if err := ensureMeta(ctx, db, dim); err != nil {
		return err
	}

	vecDDL := fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
	embedding float[%d] distance_metric=l2,
	record_id text,
	timestamp integer,
	+text text,
	+created_at integer
)`, dim)
	if _, err := db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("creating vec_records virtual table: %w", err)
	}
	return nil
}

// Append はレコードを追加する
func (v *VecTable) Append(ctx context.Context, records []*model.Record) error {
	if err := validateRecords(records, v.dim); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.db == nil {
		return ErrClosed
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO vec_records(embedding, record_id, timestamp, text, created_at) VALUES (?, ?, ?, ?, ?)`
	for _, r := range records {
		blob, err := sqlite_vec.SerializeFloat32(r.Vector)
		if err != nil {
			return fmt.Errorf("serializing embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, blob, r.ID, r.Timestamp, r.Text, r.CreatedAt); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// DeleteWhere は条件に一致する行を削除する
func (v *VecTable) DeleteWhere(ctx context.Context, pred Predicate) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.db == nil {
		return ErrClosed
	}

	where, args := vecWhere(&pred)
	if _, err := v.db.ExecContext(ctx, `DELETE FROM vec_records`+where, args...); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// ScanAll は新しい順に最大limit件を返す
func (v *VecTable) ScanAll(ctx context.Context, limit int) ([]*model.Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.db == nil {
		return nil, ErrClosed
	}

	if limit <= 0 {
		limit = -1
	}

	rows, err := v.db.QueryContext(ctx, `
SELECT record_id, text, embedding, timestamp, created_at
FROM vec_records
ORDER BY timestamp DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// SearchNearest はvec0のKNNクエリで近傍を返す
// 時間範囲はメタデータ列の制約としてKNNと同じWHEREに入れる
func (v *VecTable) SearchNearest(ctx context.Context, query []float32, limit int, filter *Predicate) ([]Neighbor, error) {
	if err := checkQuery(query, v.dim); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Neighbor{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.db == nil {
		return nil, ErrClosed
	}

	q := `
SELECT record_id, text, embedding, timestamp, created_at, distance
FROM vec_records
WHERE embedding MATCH ? AND k = ?`
	args := []any{blob, min(limit, vecMaxK)}
	conds, condArgs := predicateConds(filter, "record_id")
	for _, c := range conds {
		q += " AND " + c
	}
	args = append(args, condArgs...)
	q += "\nORDER BY distance"

	rows, err := v.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	neighbors := []Neighbor{}
	for rows.Next() {
		var (
			r    model.Record
			vec  []byte
			dist float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &vec, &r.Timestamp, &r.CreatedAt, &dist); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}
		r.Vector = decodeEmbedding(vec)
		neighbors = append(neighbors, Neighbor{Record: &r, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}

	// vec0の並びにid昇順のタイブレークを揃える
	return rankNeighbors(neighbors, limit), nil
}

// Get はidの行を返す
func (v *VecTable) Get(ctx context.Context, id string) (*model.Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.db == nil {
		return nil, ErrClosed
	}

	row := v.db.QueryRowContext(ctx, `
SELECT record_id, text, embedding, timestamp, created_at
FROM vec_records
WHERE record_id = ?
ORDER BY timestamp DESC
LIMIT 1`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Dimension はベクトル次元を返す
func (v *VecTable) Dimension() int {
	return v.dim
}

// Close はDB接続を閉じる
func (v *VecTable) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.db == nil {
		return nil
	}
	err := v.db.Close()
	v.db = nil
	return err
}

func vecWhere(p *Predicate) (string, []any) {
	conds, args := predicateConds(p, "record_id")
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var _ Table = (*VecTable)(nil)
