package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/brbranch/semstore/internal/model"
)

// GenerateNamespace はembedder設定からnamespaceを生成する
// 形式: "{provider}:{model}:{dim}"。modelに":"を含むことがあるので分解はしない
func GenerateNamespace(provider, model string, dim int) string {
	return fmt.Sprintf("%s:%s:%d", provider, model, dim)
}

// namespaceDirName はnamespaceをディレクトリ名として使える形に変換する
// 英数字と "-" "." 以外は "_" に置き換える
func namespaceDirName(namespace string) string {
	var b strings.Builder
	b.Grow(len(namespace))
	for _, r := range namespace {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// TableDir はrecord tableを置くディレクトリを返す
// store.pathが指定されていればそれを使い、なければ dataDir/tables/{namespace} になる
func TableDir(cfg *model.Config) (string, error) {
	if cfg.Store.Path != nil && *cfg.Store.Path != "" {
		return ResolvePath(*cfg.Store.Path)
	}
	if cfg.Paths.DataDir == "" {
		return "", fmt.Errorf("%w: paths.dataDir is empty", ErrInvalidConfig)
	}
	ns := GenerateNamespace(cfg.Embedder.Provider, cfg.Embedder.Model, cfg.Embedder.Dim)
	return filepath.Join(cfg.Paths.DataDir, "tables", namespaceDirName(ns)), nil
}
