//go:build ORT

package embedder

import (
	"os"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// newHugotSession はONNX Runtimeバックエンドのセッションを作成する
// ORT_LIB_DIRが設定されていればそこから共有ライブラリを読み込む
func newHugotSession() (*hugot.Session, error) {
	opts := []options.WithOption{}
	if dir := os.Getenv("ORT_LIB_DIR"); dir != "" {
		opts = append(opts, options.WithOnnxLibraryPath(dir))
	}
	return hugot.NewORTSession(opts...)
}
