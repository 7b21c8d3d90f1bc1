// Package service implements the record store façade: validation, embedding,
// record assembly and the readiness gate in front of it.
package service

import (
	"context"

	"github.com/brbranch/semstore/internal/model"
)

// RecordService はレコードの追加・一覧・検索・更新・削除を提供
type RecordService interface {
	Add(ctx context.Context, text string) (*model.Item, error)
	List(ctx context.Context, limit int) ([]model.Item, error)
	Search(ctx context.Context, req *SearchRequest) ([]model.ScoredItem, error)
	Update(ctx context.Context, id, text string) (*model.Item, error)
	Delete(ctx context.Context, id string) error
}

// SearchRequest は検索リクエスト
type SearchRequest struct {
	Query     string
	StartDate string // YYYY-MM-DD、空は下限なし
	EndDate   string // YYYY-MM-DD、空は上限なし
	Limit     int    // 0以下は既定値
}

const (
	// DefaultSearchLimit は検索件数の既定値
	DefaultSearchLimit = 10
	// MaxSearchLimit は検索件数の上限（超えた指定は切り詰め）
	MaxSearchLimit = 500
	// DefaultListLimit は一覧件数の既定値かつ上限
	DefaultListLimit = 500
)

// 操作名（ログ・メトリクス・エラーのOp）
const (
	OpAdd    = "add"
	OpList   = "list"
	OpSearch = "search"
	OpUpdate = "update"
	OpDelete = "delete"
)
