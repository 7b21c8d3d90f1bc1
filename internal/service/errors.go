package service

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類
type Kind string

const (
	KindInitialization Kind = "initialization"
	KindNotReady       Kind = "not_ready"
	KindEmbedding      Kind = "embedding"
	KindStorage        Kind = "storage"
)

// 分類ごとのセンチネル（errors.Isで判定する）
var (
	ErrInitialization = errors.New("store initialization failed")
	ErrNotReady       = errors.New("store is not ready")
	ErrEmbedding      = errors.New("embedding failed")
	ErrStorage        = errors.New("storage operation failed")
)

// バリデーションエラー
var (
	ErrTextRequired     = errors.New("text is required")
	ErrIDRequired       = errors.New("id is required")
	ErrInvalidDate      = errors.New("invalid date (expected YYYY-MM-DD)")
	ErrInvalidDateRange = errors.New("startDate must not be after endDate")
)

// Error は分類付きのエラー
type Error struct {
	Kind Kind
	Op   string // add | list | search | update | delete
	Err  error  // 原因（nil可）
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.sentinel(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is は分類のセンチネルと一致するかを返す
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindInitialization:
		return ErrInitialization
	case KindNotReady:
		return ErrNotReady
	case KindEmbedding:
		return ErrEmbedding
	default:
		return ErrStorage
	}
}

func embeddingError(op string, err error) error {
	return &Error{Kind: KindEmbedding, Op: op, Err: err}
}

func storageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// IsValidation はバリデーションエラーかを返す
func IsValidation(err error) bool {
	return errors.Is(err, ErrTextRequired) ||
		errors.Is(err, ErrIDRequired) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidDateRange)
}

// KindOf はエラーの分類を返す。分類付きでなければ空文字列
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
