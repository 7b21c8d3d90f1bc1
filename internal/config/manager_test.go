package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/brbranch/semstore/internal/model"
)

func TestManager_NewManager_DefaultPath(t *testing.T) {
	mgr, err := NewManager("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := mgr.GetConfig()
	if cfg.Paths.ConfigPath == "" {
		t.Error("expected non-empty config path")
	}
	if cfg.Paths.DataDir == "" {
		t.Error("expected non-empty data dir")
	}
}

func TestManager_NewManager_CustomPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom-config.json")

	mgr, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mgr.GetConfig().Paths.ConfigPath; got != configPath {
		t.Errorf("expected config path %q, got %q", configPath, got)
	}
	if got := mgr.GetConfigPath(); got != configPath {
		t.Errorf("expected config path %q, got %q", configPath, got)
	}
}

func TestManager_Load_NotExist(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent.json")

	mgr, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.Load(); err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	cfg := mgr.GetConfig()
	if cfg.Embedder.Provider != DefaultProvider {
		t.Errorf("expected default provider %q, got %q", DefaultProvider, cfg.Embedder.Provider)
	}
	if cfg.Embedder.Dim != DefaultDim {
		t.Errorf("expected default dim %d, got %d", DefaultDim, cfg.Embedder.Dim)
	}
}

func TestManager_Load_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	dataDir := filepath.Join(tmpDir, "data")

	configJSON := `{
		"transportDefaults": {"defaultTransport": "http", "httpAddr": "127.0.0.1:9999"},
		"embedder": {"provider": "ollama", "model": "all-minilm", "dim": 384},
		"store": {"type": "sqlitevec"},
		"paths": {"dataDir": "` + dataDir + `"},
		"search": {"timezone": "UTC"}
	}`
	if err := os.WriteFile(configPath, []byte(configJSON), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.Load(); err != nil {
		t.Fatalf("unexpected error on load: %v", err)
	}

	cfg := mgr.GetConfig()
	if cfg.TransportDefaults.DefaultTransport != model.TransportHTTP {
		t.Errorf("expected transport http, got %q", cfg.TransportDefaults.DefaultTransport)
	}
	if cfg.TransportDefaults.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("expected http addr, got %q", cfg.TransportDefaults.HTTPAddr)
	}
	if cfg.Embedder.Provider != model.ProviderOllama || cfg.Embedder.Model != "all-minilm" {
		t.Errorf("unexpected embedder: %+v", cfg.Embedder)
	}
	if cfg.Store.Type != model.StoreTypeSQLiteVec {
		t.Errorf("expected store type sqlitevec, got %q", cfg.Store.Type)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Errorf("expected data dir %q, got %q", dataDir, cfg.Paths.DataDir)
	}
	if cfg.Paths.ConfigPath != configPath {
		t.Errorf("expected config path %q, got %q", configPath, cfg.Paths.ConfigPath)
	}

	// ファイルにない項目はデフォルトのまま
	if cfg.Search.DefaultLimit != DefaultSearchLimit {
		t.Errorf("expected default search limit, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.List.DefaultLimit != DefaultListLimit {
		t.Errorf("expected default list limit, got %d", cfg.List.DefaultLimit)
	}
	if cfg.Log.Format != model.LogFormatText {
		t.Errorf("expected default log format, got %q", cfg.Log.Format)
	}
}

func TestManager_Load_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configYAML := `
embedder:
  provider: openai
  model: text-embedding-3-small
  dim: 1536
store:
  type: qdrant
  url: http://localhost:6333
log:
  level: debug
  format: json
list:
  defaultLimit: 100
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.Load(); err != nil {
		t.Fatalf("unexpected error on load: %v", err)
	}

	cfg := mgr.GetConfig()
	if cfg.Embedder.Provider != model.ProviderOpenAI || cfg.Embedder.Dim != 1536 {
		t.Errorf("unexpected embedder: %+v", cfg.Embedder)
	}
	if cfg.Store.URL == nil || *cfg.Store.URL != "http://localhost:6333" {
		t.Errorf("unexpected store url: %v", cfg.Store.URL)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != model.LogFormatJSON {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.List.DefaultLimit != 100 {
		t.Errorf("expected list limit 100, got %d", cfg.List.DefaultLimit)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestManager_Load_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "json", file: "invalid.json", content: "{ invalid json }"},
		{name: "yaml", file: "invalid.yaml", content: "embedder: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(configPath, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}

			mgr, err := NewManager(configPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := mgr.Load(); err == nil {
				t.Error("expected error for invalid file, got nil")
			}
		})
	}
}

func TestManager_SaveAndLoad(t *testing.T) {
	for _, file := range []string{"config.json", "config.yml"} {
		t.Run(file, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "nested", file)

			mgr, err := NewManager(configPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			apiKey := "secret"
			if err := mgr.UpdateEmbedder(&model.EmbedderConfig{
				Provider: model.ProviderOpenAI,
				Model:    "text-embedding-3-small",
				Dim:      1536,
				APIKey:   &apiKey,
			}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := mgr.Save(); err != nil {
				t.Fatalf("unexpected error on save: %v", err)
			}

			// 一時ファイルは残らない
			if _, err := os.Stat(configPath + ".tmp"); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("expected temp file to be removed, stat err = %v", err)
			}

			data, err := os.ReadFile(configPath)
			if err != nil {
				t.Fatalf("failed to read saved file: %v", err)
			}
			if strings.Contains(string(data), apiKey) {
				t.Error("expected api key not to be written to config file")
			}

			loaded, err := NewManager(configPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := loaded.Load(); err != nil {
				t.Fatalf("unexpected error on load: %v", err)
			}
			cfg := loaded.GetConfig()
			if cfg.Embedder.Provider != model.ProviderOpenAI || cfg.Embedder.Dim != 1536 {
				t.Errorf("unexpected embedder after reload: %+v", cfg.Embedder)
			}
			if cfg.Embedder.APIKey != nil {
				t.Errorf("expected nil api key after reload, got %q", *cfg.Embedder.APIKey)
			}
		})
	}
}

func TestManager_Save_JSONShape(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	mgr, err := NewManager(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.Save(); err != nil {
		t.Fatalf("unexpected error on save: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	for _, key := range []string{"transportDefaults", "embedder", "store", "paths", "log", "search", "list"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in saved config", key)
		}
	}
}

func TestManager_UpdateEmbedder_KeepsOtherFields(t *testing.T) {
	dataDir := t.TempDir()
	mgr := NewManagerWithConfig(DefaultConfig(filepath.Join(dataDir, "config.json"), dataDir))

	if err := mgr.UpdateEmbedder(&model.EmbedderConfig{Model: "paraphrase-MiniLM-L3-v2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := mgr.GetConfig()
	if cfg.Embedder.Model != "paraphrase-MiniLM-L3-v2" {
		t.Errorf("expected model updated, got %q", cfg.Embedder.Model)
	}
	if cfg.Embedder.Provider != DefaultProvider {
		t.Errorf("expected provider unchanged, got %q", cfg.Embedder.Provider)
	}
	if cfg.Embedder.Dim != DefaultDim {
		t.Errorf("expected dim unchanged, got %d", cfg.Embedder.Dim)
	}
	if cfg.Store.Type != DefaultStoreType || cfg.Paths.DataDir != dataDir {
		t.Errorf("expected store and paths unchanged, got %+v %+v", cfg.Store, cfg.Paths)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/tmp/config.json", "/tmp/data")

	if cfg.TransportDefaults.DefaultTransport != model.TransportStdio {
		t.Errorf("expected stdio transport, got %q", cfg.TransportDefaults.DefaultTransport)
	}
	if cfg.Embedder.Provider != model.ProviderLocal || cfg.Embedder.Model != "all-MiniLM-L6-v2" || cfg.Embedder.Dim != 384 {
		t.Errorf("unexpected embedder defaults: %+v", cfg.Embedder)
	}
	if cfg.Store.Type != model.StoreTypeSQLite {
		t.Errorf("expected sqlite store, got %q", cfg.Store.Type)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.List.DefaultLimit != 500 {
		t.Errorf("unexpected limits: search=%d list=%d", cfg.Search.DefaultLimit, cfg.List.DefaultLimit)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *model.Config)
		field  string
	}{
		{name: "transport", mutate: func(c *model.Config) { c.TransportDefaults.DefaultTransport = "grpc" }, field: "transport"},
		{name: "provider", mutate: func(c *model.Config) { c.Embedder.Provider = "cohere" }, field: "provider"},
		{name: "model", mutate: func(c *model.Config) { c.Embedder.Model = "" }, field: "embedder.model"},
		{name: "dim", mutate: func(c *model.Config) { c.Embedder.Dim = 0 }, field: "embedder.dim"},
		{name: "store type", mutate: func(c *model.Config) { c.Store.Type = "chroma" }, field: "store type"},
		{name: "qdrant without url", mutate: func(c *model.Config) { c.Store.Type = model.StoreTypeQdrant }, field: "store.url"},
		{name: "log level", mutate: func(c *model.Config) { c.Log.Level = "trace" }, field: "log level"},
		{name: "log format", mutate: func(c *model.Config) { c.Log.Format = "xml" }, field: "log format"},
		{name: "search limit", mutate: func(c *model.Config) { c.Search.DefaultLimit = 0 }, field: "search.defaultLimit"},
		{name: "search limit over cap", mutate: func(c *model.Config) { c.Search.DefaultLimit = 501 }, field: "search.defaultLimit"},
		{name: "list limit over cap", mutate: func(c *model.Config) { c.List.DefaultLimit = 501 }, field: "list.defaultLimit"},
		{name: "timezone", mutate: func(c *model.Config) { c.Search.Timezone = "Mars/Olympus" }, field: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/config.json", "/tmp/data")
			tt.mutate(cfg)

			err := Validate(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %q, got %v", tt.field, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig("", "")

	loc, err := Location(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != time.Local {
		t.Errorf("expected time.Local for empty timezone, got %v", loc)
	}

	cfg.Search.Timezone = "Asia/Tokyo"
	loc, err = Location(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("expected Asia/Tokyo, got %v", loc)
	}
}
