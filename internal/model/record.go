package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultDimension は既定の埋め込み次元（all-MiniLM-L6-v2）
const DefaultDimension = 384

// Record はテーブルに保存される1行を表す（内部データモデル）
// 保存後は不変で、更新は削除+再挿入で行う
type Record struct {
	ID        string    // 一意ID、作成時に一度だけ割り当て
	Text      string    // 必須
	Vector    []float32 // Textの埋め込み。呼び出し元には公開しない
	Timestamp int64     // 作成時刻または最終更新時刻（epoch ms）
	CreatedAt int64     // 初回作成時刻（epoch ms）
}

// Item は呼び出し元に返すレコード（ベクトルなし）
type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	CreatedAt int64  `json:"createdAt"`
}

// ScoredItem は検索結果の1件
type ScoredItem struct {
	Item
	Score      float64 `json:"score"`      // L2距離（小さいほど類似）
	Similarity float64 `json:"similarity"` // 1 - score/2
}

// エラー定義
var (
	ErrEmptyID     = errors.New("record id must not be empty")
	ErrEmptyText   = errors.New("record text must not be empty")
	ErrEmptyVector = errors.New("record vector must not be empty")
)

// Validate はRecordのバリデーションを実行する
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if len(r.Vector) == 0 {
		return ErrEmptyVector
	}
	return nil
}

// ToItem はベクトルを除いたItemを返す
func (r *Record) ToItem() Item {
	return Item{
		ID:        r.ID,
		Text:      r.Text,
		Timestamp: r.Timestamp,
		CreatedAt: r.CreatedAt,
	}
}

// Clone はベクトルを含めたディープコピーを返す
func (r *Record) Clone() *Record {
	c := *r
	if r.Vector != nil {
		c.Vector = make([]float32, len(r.Vector))
		copy(c.Vector, r.Vector)
	}
	return &c
}

// Millis はtime.Timeをepochミリ秒に変換する
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis はepochミリ秒をUTCのtime.Timeに変換する
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
