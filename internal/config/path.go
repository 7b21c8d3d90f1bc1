package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultConfigDir はデフォルトの設定ディレクトリ名
	DefaultConfigDir = ".semstore"
	// DefaultConfigFile はデフォルトの設定ファイル名
	DefaultConfigFile = "config.json"
	// DefaultDataSubDir はデフォルトのデータサブディレクトリ名
	DefaultDataSubDir = "data"
)

// ExpandTilde は先頭の"~"をホームディレクトリに展開する
// "~user" の形式は展開しない
func ExpandTilde(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return path, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rest), nil
}

// ResolvePath は"~"展開と絶対パス化を行う
// 空文字はそのまま返す
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := ExpandTilde(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// GetDefaultConfigPath は ~/.semstore/config.json を返す
func GetDefaultConfigPath() (string, error) {
	return appPath(DefaultConfigFile)
}

// GetDefaultDataDir は ~/.semstore/data を返す
func GetDefaultDataDir() (string, error) {
	return appPath(DefaultDataSubDir)
}

// EnsureDir はディレクトリがなければ本人のみ読み書きできる権限で作成する
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// appPath は ~/.semstore 以下のパスを返す
func appPath(elem ...string) (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{home, DefaultConfigDir}, elem...)...), nil
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home, nil
}
