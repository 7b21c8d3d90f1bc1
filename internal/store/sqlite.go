package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/brbranch/semstore/internal/model"
	_ "modernc.org/sqlite"
)

const (
	// recordCountWarningThreshold は警告を出す行数の閾値
	recordCountWarningThreshold = 5000

	// metricL2 はtable_metaに記録する距離関数名
	metricL2 = "l2"
)

// SQLiteTable はSQLite（modernc.org/sqlite）を使用したTable実装
// 近傍探索はSQLで絞り込んだ行に対する総当たり
type SQLiteTable struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	dim    int
	logger *slog.Logger
}

// NewSQLiteTable はdbPathのテーブルを開く。無ければ作成する
// 既存テーブルの次元がdimと異なる場合はErrDimensionMismatch
func NewSQLiteTable(ctx context.Context, dbPath string, dim int, logger *slog.Logger) (*SQLiteTable, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WALモードを有効化
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	t := &SQLiteTable{
		db:     db,
		dbPath: dbPath,
		dim:    dim,
		logger: logger,
	}

	if err := t.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return t, nil
}

// migrate はスキーマを作成し、次元を検証する
func (t *SQLiteTable) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_id ON records(id);
	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp);

	CREATE TABLE IF NOT EXISTS table_meta (
		singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL
	);
	`
	if _, err := t.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	return ensureMeta(ctx, t.db, t.dim)
}

// ensureMeta はtable_metaの次元を検証し、初回は書き込む
func ensureMeta(ctx context.Context, db *sql.DB, dim int) error {
	var (
		storedDim    int
		storedMetric string
	)
	err := db.QueryRowContext(ctx, `SELECT dimension, metric FROM table_meta WHERE singleton = 1`).
		Scan(&storedDim, &storedMetric)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO table_meta (singleton, dimension, metric) VALUES (1, ?, ?)`, dim, metricL2); err != nil {
			return fmt.Errorf("failed to write table meta: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read table meta: %w", err)
	}

	if storedDim != dim {
		return fmt.Errorf("%w: table has %d, configured %d", ErrDimensionMismatch, storedDim, dim)
	}
	if storedMetric != metricL2 {
		return fmt.Errorf("unsupported distance metric %q", storedMetric)
	}
	return nil
}

// Close はテーブルをクローズする
func (t *SQLiteTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

// Dimension はベクトル次元を返す
func (t *SQLiteTable) Dimension() int {
	return t.dim
}

// Append はレコードを1トランザクションで追加する
func (t *SQLiteTable) Append(ctx context.Context, records []*model.Record) error {
	if err := validateRecords(records, t.dim); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return ErrClosed
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, text, vector, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, r.Text, encodeEmbedding(r.Vector), r.Timestamp, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}

	// 件数チェックと警告
	count, _ := t.countRecords(ctx)
	if count >= recordCountWarningThreshold {
		t.logger.Warn("record count exceeded threshold",
			"count", count,
			"threshold", recordCountWarningThreshold,
			"recommendation", "consider the sqlitevec or qdrant store for indexed search")
	}

	return nil
}

// DeleteWhere は条件に一致する行を削除する
func (t *SQLiteTable) DeleteWhere(ctx context.Context, pred Predicate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return ErrClosed
	}

	where, args := whereClause(&pred)
	if _, err := t.db.ExecContext(ctx, `DELETE FROM records`+where, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// ScanAll は新しい順に最大limit件を返す
func (t *SQLiteTable) ScanAll(ctx context.Context, limit int) ([]*model.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.db == nil {
		return nil, ErrClosed
	}

	// SQLiteのLIMIT -1は無制限
	if limit <= 0 {
		limit = -1
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT id, text, vector, timestamp, created_at
		FROM records
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []*model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// SearchNearest はfilterで絞り込んだ行を総当たりでL2距離順に並べる
func (t *SQLiteTable) SearchNearest(ctx context.Context, query []float32, limit int, filter *Predicate) ([]Neighbor, error) {
	if err := checkQuery(query, t.dim); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.db == nil {
		return nil, ErrClosed
	}

	where, args := whereClause(filter)
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, text, vector, timestamp, created_at
		FROM records`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	neighbors := []Neighbor{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, Neighbor{
			Record:   r,
			Distance: L2Distance(query, r.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rankNeighbors(neighbors, limit), nil
}

// Get はidの行を返す（重複時は最新のもの）
func (t *SQLiteTable) Get(ctx context.Context, id string) (*model.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.db == nil {
		return nil, ErrClosed
	}

	row := t.db.QueryRowContext(ctx, `
		SELECT id, text, vector, timestamp, created_at
		FROM records
		WHERE id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Helper functions

func (t *SQLiteTable) countRecords(ctx context.Context) (int, error) {
	var count int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var (
		r    model.Record
		blob []byte
	)
	if err := row.Scan(&r.ID, &r.Text, &blob, &r.Timestamp, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	r.Vector = decodeEmbedding(blob)
	return &r, nil
}

// whereClause はPredicateをSQLのWHERE句とプレースホルダ引数に変換する
// 条件がなければ空文字列を返す
func whereClause(p *Predicate) (string, []any) {
	conds, args := predicateConds(p, "id")
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// predicateConds はPredicateを条件式のリストに変換する。idColumnはidを保持する列名
func predicateConds(p *Predicate, idColumn string) ([]string, []any) {
	if p == nil || p.IsEmpty() {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	if p.ID != nil {
		conds = append(conds, idColumn+" = ?")
		args = append(args, *p.ID)
	}
	if p.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *p.Since)
	}
	if p.Until != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, *p.Until)
	}
	return conds, args
}

var _ Table = (*SQLiteTable)(nil)
