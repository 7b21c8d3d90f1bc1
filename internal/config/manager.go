package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brbranch/semstore/internal/model"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid config")

// デフォルト値
const (
	DefaultProvider    = model.ProviderLocal
	DefaultModel       = "all-MiniLM-L6-v2"
	DefaultDim         = 384
	DefaultStoreType   = model.StoreTypeSQLite
	DefaultLogLevel    = "info"
	DefaultSearchLimit = 10
	MaxSearchLimit     = 500
	DefaultListLimit   = 500
	MaxListLimit       = 500
	DefaultHTTPAddr    = "127.0.0.1:8765"
)

// Manager は設定の読み書きを管理する
type Manager struct {
	mu         sync.RWMutex
	config     *model.Config
	configPath string
}

// NewManager は新しいManagerを作成する
// configPathが空文字の場合、デフォルトパス（~/.semstore/config.json）を使用
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	} else {
		resolved, err := ResolvePath(configPath)
		if err != nil {
			return nil, err
		}
		configPath = resolved
	}

	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get default data dir: %w", err)
	}

	return &Manager{
		config:     DefaultConfig(configPath, dataDir),
		configPath: configPath,
	}, nil
}

// NewManagerWithConfig は指定した設定でManagerを作成する（テスト用）
func NewManagerWithConfig(cfg *model.Config) *Manager {
	return &Manager{
		config:     cfg,
		configPath: cfg.Paths.ConfigPath,
	}
}

// isYAML は拡張子でYAML形式かどうかを判定する
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load は設定ファイルを読み込む
// ファイルが存在しない場合はデフォルト設定を使用（エラーなし）。
// ファイルに書かれていない項目はデフォルト値のまま残る
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := *m.config
	if isYAML(m.configPath) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// 設定ファイルの場所は実際に読んだパスを正とする
	cfg.Paths.ConfigPath = m.configPath
	if cfg.Paths.DataDir != "" {
		dataDir, err := ResolvePath(cfg.Paths.DataDir)
		if err != nil {
			return err
		}
		cfg.Paths.DataDir = dataDir
	}

	m.config = &cfg
	return nil
}

// Save は設定ファイルを保存する
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := *m.config
	m.mu.RUnlock()

	if m.configPath == "" {
		return fmt.Errorf("%w: config path is empty", ErrInvalidConfig)
	}

	if err := EnsureDir(filepath.Dir(m.configPath)); err != nil {
		return err
	}

	// APIキーはファイルに書き出さない
	cfg.Embedder.APIKey = nil

	var (
		data []byte
		err  error
	)
	if isYAML(m.configPath) {
		data, err = yaml.Marshal(&cfg)
	} else {
		data, err = json.MarshalIndent(&cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 一時ファイルに書き込んでからリネームする
	tmpFile := m.configPath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := os.Rename(tmpFile, m.configPath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// GetConfig は現在の設定を返す
func (m *Manager) GetConfig() *model.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath は設定ファイルパスを返す
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// UpdateEmbedder はembedder設定のみを更新する
// 空の項目は既存値を保持する
func (m *Manager) UpdateEmbedder(embedder *model.EmbedderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if embedder.Provider != "" {
		m.config.Embedder.Provider = embedder.Provider
	}
	if embedder.Model != "" {
		m.config.Embedder.Model = embedder.Model
	}
	if embedder.Dim != 0 {
		m.config.Embedder.Dim = embedder.Dim
	}
	if embedder.BaseURL != nil {
		m.config.Embedder.BaseURL = embedder.BaseURL
	}
	if embedder.APIKey != nil {
		m.config.Embedder.APIKey = embedder.APIKey
	}
	if embedder.ModelDir != nil {
		m.config.Embedder.ModelDir = embedder.ModelDir
	}

	return nil
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(configPath, dataDir string) *model.Config {
	return &model.Config{
		TransportDefaults: model.TransportDefaults{
			DefaultTransport: model.TransportStdio,
			HTTPAddr:         DefaultHTTPAddr,
		},
		Embedder: model.EmbedderConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
			Dim:      DefaultDim,
		},
		Store: model.StoreConfig{
			Type: DefaultStoreType,
		},
		Paths: model.PathsConfig{
			ConfigPath: configPath,
			DataDir:    dataDir,
		},
		Log: model.LogConfig{
			Level:  DefaultLogLevel,
			Format: model.LogFormatText,
		},
		Search: model.SearchConfig{
			DefaultLimit: DefaultSearchLimit,
		},
		List: model.ListConfig{
			DefaultLimit: DefaultListLimit,
		},
	}
}

// Validate は設定値の整合性を検証する
func Validate(cfg *model.Config) error {
	var errs []error

	switch cfg.TransportDefaults.DefaultTransport {
	case model.TransportStdio, model.TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", cfg.TransportDefaults.DefaultTransport))
	}

	switch cfg.Embedder.Provider {
	case model.ProviderLocal, model.ProviderOpenAI, model.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider))
	}
	if cfg.Embedder.Model == "" {
		errs = append(errs, errors.New("embedder.model is required"))
	}
	if cfg.Embedder.Dim <= 0 {
		errs = append(errs, fmt.Errorf("embedder.dim must be positive, got %d", cfg.Embedder.Dim))
	}

	switch cfg.Store.Type {
	case model.StoreTypeSQLite, model.StoreTypeSQLiteVec, model.StoreTypeMemory:
	case model.StoreTypeQdrant:
		if cfg.Store.URL == nil || *cfg.Store.URL == "" {
			errs = append(errs, errors.New("store.url is required for qdrant"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", cfg.Store.Type))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case model.LogFormatText, model.LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", cfg.Log.Format))
	}

	if cfg.Search.DefaultLimit <= 0 || cfg.Search.DefaultLimit > MaxSearchLimit {
		errs = append(errs, fmt.Errorf("search.defaultLimit must be in 1..%d, got %d", MaxSearchLimit, cfg.Search.DefaultLimit))
	}
	if cfg.List.DefaultLimit <= 0 || cfg.List.DefaultLimit > MaxListLimit {
		errs = append(errs, fmt.Errorf("list.defaultLimit must be in 1..%d, got %d", MaxListLimit, cfg.List.DefaultLimit))
	}
	if _, err := Location(cfg); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Location は日付フィルタに使うタイムゾーンを返す
// search.timezoneが空ならtime.Local
func Location(cfg *model.Config) (*time.Location, error) {
	if cfg.Search.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Search.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", cfg.Search.Timezone, err)
	}
	return loc, nil
}
