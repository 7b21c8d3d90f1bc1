package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/brbranch/semstore/internal/model"
)

// 環境変数名の定数
const (
	EnvPrefix       = "SEMSTORE"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvConfigPath   = EnvPrefix + "_CONFIG"
)

// EnvConfig はSEMSTORE_ で始まる環境変数による上書き設定
// 空の項目は上書きしない。
// envconfigタグを付けると接頭辞なしの変数（PATH など）にもフォールバックするので、
// 変数名はフィールド名から split_words で決める
type EnvConfig struct {
	DataDir     string   `split_words:"true"` // SEMSTORE_DATA_DIR
	Transport   string   // SEMSTORE_TRANSPORT
	HTTPAddr    string   `split_words:"true"` // SEMSTORE_HTTP_ADDR
	CORSOrigins []string `split_words:"true"` // SEMSTORE_CORS_ORIGINS（カンマ区切り）

	Embedder EmbedderEnv
	Store    StoreEnv
	Log      LogEnv

	SearchLimit    int    `split_words:"true"` // SEMSTORE_SEARCH_LIMIT
	SearchTimezone string `split_words:"true"` // SEMSTORE_SEARCH_TIMEZONE
	ListLimit      int    `split_words:"true"` // SEMSTORE_LIST_LIMIT
}

// EmbedderEnv は SEMSTORE_EMBEDDER_* の環境変数
type EmbedderEnv struct {
	Provider string
	Model    string
	Dim      int
	BaseURL  string `split_words:"true"`
	APIKey   string `split_words:"true"`
	ModelDir string `split_words:"true"`
}

// StoreEnv は SEMSTORE_STORE_* の環境変数
type StoreEnv struct {
	Type string
	Path string
	URL  string
}

// LogEnv は SEMSTORE_LOG_* の環境変数
type LogEnv struct {
	Level  string
	Format string
}

// LoadDotEnv は.envファイルを読み込む
// pathが空なら カレントディレクトリの .env、存在しなければ何もしない。
// 既に設定済みの環境変数は上書きしない
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv は環境変数からEnvConfigを読み込む
func LoadFromEnv() (EnvConfig, error) {
	var env EnvConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return EnvConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return env, nil
}

// ApplyEnvOverrides は環境変数による設定上書きを適用する
// config を直接変更する
func ApplyEnvOverrides(config *model.Config) error {
	env, err := LoadFromEnv()
	if err != nil {
		return err
	}
	env.Apply(config)

	// SEMSTORE_EMBEDDER_API_KEY がなければ OPENAI_API_KEY を使う
	if env.Embedder.APIKey == "" {
		if apiKey := os.Getenv(EnvOpenAIAPIKey); apiKey != "" {
			config.Embedder.APIKey = &apiKey
		}
	}
	return nil
}

// Apply は空でない項目だけをconfigに反映する
func (e EnvConfig) Apply(config *model.Config) {
	if e.DataDir != "" {
		config.Paths.DataDir = e.DataDir
	}
	if e.Transport != "" {
		config.TransportDefaults.DefaultTransport = e.Transport
	}
	if e.HTTPAddr != "" {
		config.TransportDefaults.HTTPAddr = e.HTTPAddr
	}
	if len(e.CORSOrigins) > 0 {
		config.TransportDefaults.CORSOrigins = e.CORSOrigins
	}

	if e.Embedder.Provider != "" {
		config.Embedder.Provider = e.Embedder.Provider
	}
	if e.Embedder.Model != "" {
		config.Embedder.Model = e.Embedder.Model
	}
	if e.Embedder.Dim != 0 {
		config.Embedder.Dim = e.Embedder.Dim
	}
	if e.Embedder.BaseURL != "" {
		v := e.Embedder.BaseURL
		config.Embedder.BaseURL = &v
	}
	if e.Embedder.APIKey != "" {
		v := e.Embedder.APIKey
		config.Embedder.APIKey = &v
	}
	if e.Embedder.ModelDir != "" {
		v := e.Embedder.ModelDir
		config.Embedder.ModelDir = &v
	}

	if e.Store.Type != "" {
		config.Store.Type = e.Store.Type
	}
	if e.Store.Path != "" {
		v := e.Store.Path
		config.Store.Path = &v
	}
	if e.Store.URL != "" {
		v := e.Store.URL
		config.Store.URL = &v
	}

	if e.Log.Level != "" {
		config.Log.Level = e.Log.Level
	}
	if e.Log.Format != "" {
		config.Log.Format = e.Log.Format
	}

	if e.SearchLimit != 0 {
		config.Search.DefaultLimit = e.SearchLimit
	}
	if e.SearchTimezone != "" {
		config.Search.Timezone = e.SearchTimezone
	}
	if e.ListLimit != 0 {
		config.List.DefaultLimit = e.ListLimit
	}
}

// GetOpenAIAPIKey はOpenAI APIキーを取得する
// 環境変数 OPENAI_API_KEY を設定ファイルの値より優先
func GetOpenAIAPIKey(config *model.Config) string {
	if apiKey := os.Getenv(EnvOpenAIAPIKey); apiKey != "" {
		return apiKey
	}
	if config.Embedder.APIKey != nil {
		return *config.Embedder.APIKey
	}
	return ""
}

// Load は設定ファイルと環境変数から設定を組み立てる
// 優先順位: 環境変数 > 設定ファイル > デフォルト。
// configPathが空ならSEMSTORE_CONFIG、それもなければデフォルトパスを使う
func Load(configPath string) (*Manager, error) {
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	mgr, err := NewManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}

	mgr.mu.Lock()
	err = ApplyEnvOverrides(mgr.config)
	if err == nil && mgr.config.Paths.DataDir != "" {
		mgr.config.Paths.DataDir, err = ResolvePath(mgr.config.Paths.DataDir)
	}
	mgr.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := Validate(mgr.GetConfig()); err != nil {
		return nil, err
	}
	return mgr, nil
}
