package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brbranch/semstore/internal/model"
)

// Predicate は行の絞り込み条件（nilのフィールドは条件なし、全てAND）
type Predicate struct {
	ID    *string // id の完全一致
	Since *int64  // since <= timestamp（epoch ms、境界含む）
	Until *int64  // timestamp <= until（epoch ms、境界含む）
}

// ByID はidの完全一致条件を返す
func ByID(id string) Predicate {
	return Predicate{ID: &id}
}

// IsEmpty は条件が一つもないかを返す
func (p Predicate) IsEmpty() bool {
	return p.ID == nil && p.Since == nil && p.Until == nil
}

// Match はレコードが条件を満たすかを返す
func (p Predicate) Match(r *model.Record) bool {
	if p.ID != nil && r.ID != *p.ID {
		return false
	}
	if p.Since != nil && r.Timestamp < *p.Since {
		return false
	}
	if p.Until != nil && r.Timestamp > *p.Until {
		return false
	}
	return true
}

// String はログ用に条件を文字列化する
// 例: id = 'abc' AND timestamp >= 1700000000000
func (p Predicate) String() string {
	var parts []string
	if p.ID != nil {
		parts = append(parts, fmt.Sprintf("id = '%s'", strings.ReplaceAll(*p.ID, "'", "''")))
	}
	if p.Since != nil {
		parts = append(parts, fmt.Sprintf("timestamp >= %d", *p.Since))
	}
	if p.Until != nil {
		parts = append(parts, fmt.Sprintf("timestamp <= %d", *p.Until))
	}
	if len(parts) == 0 {
		return "TRUE"
	}
	return strings.Join(parts, " AND ")
}

// Neighbor はSearchNearestの結果1件
type Neighbor struct {
	Record   *model.Record
	Distance float64 // L2距離（0が同一）
}

// エラー定義
var (
	ErrNotFound          = errors.New("record not found")
	ErrOpenFailed        = errors.New("failed to open record table")
	ErrClosed            = errors.New("record table closed")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrConnectionFailed  = errors.New("failed to connect to store")
	ErrUnknownStoreType  = errors.New("unknown store type")
	ErrCGORequired       = errors.New("store type requires a cgo build")
)
