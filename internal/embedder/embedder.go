// Package embedder turns text into fixed-length embedding vectors.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Embedder はテキストから埋め込みベクトルを生成するインターフェース
type Embedder interface {
	// Embed はテキストを埋め込みベクトルに変換する
	Embed(ctx context.Context, text string) ([]float32, error)

	// GetDimension はこのEmbedderが生成するベクトルの次元数を返す
	GetDimension() int
}

// Loader は初回利用前に一度だけモデルをロードする必要があるEmbedder
// Load前のEmbedはErrUninitializedを返す
type Loader interface {
	Load(ctx context.Context) error
}

// エラー定義
var (
	ErrUninitialized     = errors.New("embedder not initialized")
	ErrAPIKeyRequired    = errors.New("api key is required")
	ErrAPIRequestFailed  = errors.New("API request failed")
	ErrEmptyEmbedding    = errors.New("empty embedding returned")
	ErrUnknownProvider   = errors.New("unknown embedder provider")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrModelNotFound     = errors.New("embedding model not found")
)

// APIError は詳細なAPIエラー情報を保持
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequestFailed
}

// Load はembがLoaderであればLoadを呼び出す。それ以外は何もしない
func Load(ctx context.Context, emb Embedder) error {
	if l, ok := emb.(Loader); ok {
		return l.Load(ctx)
	}
	return nil
}

// checkDimension はベクトル長が期待値と一致するか検証する（want=0は未指定）
func checkDimension(vec []float32, want int) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(vec))
	}
	return nil
}

// Normalize はベクトルをL2ノルム1に正規化したコピーを返す
// ゼロベクトルはそのままコピーして返す
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}

	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
