// Package idgen generates record identifiers.
package idgen

import "github.com/google/uuid"

// Generator は新規レコード用の一意IDを生成する
type Generator interface {
	NewID() string
}

// UUIDGenerator はUUIDv7（時刻順 + 74bitの乱数）でIDを生成する
// 状態を持たないため複数goroutineから安全に呼び出せる
type UUIDGenerator struct{}

// NewUUIDGenerator は新しいUUIDGeneratorを作成
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID はIDを生成する
func (g *UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// 乱数源の読み取りに失敗した場合のみ。v4にフォールバック
		return uuid.NewString()
	}
	return id.String()
}

// Func は関数をGeneratorとして扱うアダプタ（テスト用）
type Func func() string

// NewID はfを呼び出す
func (f Func) NewID() string {
	return f()
}
