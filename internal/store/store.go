// Package store provides the record table: a persistent, append-oriented
// collection of embedded records with nearest-neighbour search.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brbranch/semstore/internal/model"
)

// Table はレコードテーブルの抽象インターフェース
//
// 行は保存後に変更されない。更新は呼び出し側でDeleteWhere+Appendとして行う。
// 距離は常にL2（ユークリッド距離）。
type Table interface {
	// Append はレコードを追加する（id重複チェックなし）
	Append(ctx context.Context, records []*model.Record) error

	// DeleteWhere は条件に一致する行を全て削除する（一致なしはno-op）
	DeleteWhere(ctx context.Context, pred Predicate) error

	// ScanAll は最大limit件を返す（limit<=0は全件）。順序は実装依存
	ScanAll(ctx context.Context, limit int) ([]*model.Record, error)

	// SearchNearest はfilterを満たす行をqueryとのL2距離昇順で最大limit件返す
	SearchNearest(ctx context.Context, query []float32, limit int, filter *Predicate) ([]Neighbor, error)

	// Get はidの行を返す。存在しなければErrNotFound
	Get(ctx context.Context, id string) (*model.Record, error)

	// Dimension はテーブルのベクトル次元を返す
	Dimension() int

	// Close はテーブルをクローズする
	Close() error
}

// Options はOpenのオプション
type Options struct {
	Type       string // sqlite（既定）| sqlitevec | qdrant | memory
	Dir        string // テーブルディレクトリ（sqlite系）
	URL        string // 接続先（qdrant）
	APIKey     string // qdrant APIキー（任意）
	Collection string // qdrantコレクション名
	Dimension  int
	Logger     *slog.Logger
}

const (
	// DBFileName はsqlite系バックエンドのファイル名
	DBFileName = "records.db"
	// DefaultCollection はqdrantの既定コレクション名
	DefaultCollection = "semstore_records"
)

// Open はOptions.Typeに応じたテーブルを開く（無ければ作成する）
// 失敗は全てErrOpenFailedでラップされる
func Open(ctx context.Context, opts Options) (Table, error) {
	if opts.Dimension <= 0 {
		opts.Dimension = model.DefaultDimension
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	table, err := open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	opts.Logger.Debug("record table opened", "type", opts.Type, "dimension", opts.Dimension)
	return table, nil
}

func open(ctx context.Context, opts Options) (Table, error) {
	switch opts.Type {
	case model.StoreTypeSQLite, "":
		path, err := dbPath(opts.Dir)
		if err != nil {
			return nil, err
		}
		return NewSQLiteTable(ctx, path, opts.Dimension, opts.Logger)

	case model.StoreTypeSQLiteVec:
		path, err := dbPath(opts.Dir)
		if err != nil {
			return nil, err
		}
		return NewVecTable(ctx, path, opts.Dimension, opts.Logger)

	case model.StoreTypeQdrant:
		collection := opts.Collection
		if collection == "" {
			collection = DefaultCollection
		}
		return NewQdrantTable(ctx, QdrantOptions{
			URL:        opts.URL,
			APIKey:     opts.APIKey,
			Collection: collection,
			Dimension:  opts.Dimension,
			Logger:     opts.Logger,
		})

	case model.StoreTypeMemory:
		return NewMemoryTable(opts.Dimension), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStoreType, opts.Type)
	}
}

// dbPath はテーブルディレクトリを作成し、DBファイルのパスを返す
func dbPath(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("table directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create table directory: %w", err)
	}
	return filepath.Join(dir, DBFileName), nil
}
