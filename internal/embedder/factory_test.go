package embedder

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/brbranch/semstore/internal/model"
)

func TestNewEmbedder_OpenAI(t *testing.T) {
	cfg := &model.EmbedderConfig{
		Provider: model.ProviderOpenAI,
		Model:    "text-embedding-3-small",
		Dim:      384,
	}

	emb, err := NewEmbedder(cfg, "test-api-key", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	openaiEmb, ok := emb.(*OpenAIEmbedder)
	if !ok {
		t.Fatalf("expected *OpenAIEmbedder, got %T", emb)
	}
	if openaiEmb.GetDimension() != 384 {
		t.Errorf("expected dim 384, got %d", openaiEmb.GetDimension())
	}
}

func TestNewEmbedder_OpenAI_APIKeyPriority(t *testing.T) {
	cfgKey := "cfg-api-key"
	empty := ""

	tests := []struct {
		name   string
		cfgKey *string
		envKey string
		want   string
	}{
		{"cfg takes priority", &cfgKey, "env-api-key", "cfg-api-key"},
		{"nil falls back to env", nil, "env-api-key", "env-api-key"},
		{"empty falls back to env", &empty, "env-api-key", "env-api-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &model.EmbedderConfig{
				Provider: model.ProviderOpenAI,
				APIKey:   tt.cfgKey,
			}
			emb, err := NewEmbedder(cfg, tt.envKey, t.TempDir(), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := emb.(*OpenAIEmbedder).apiKey; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewEmbedder_OpenAI_NoAPIKey(t *testing.T) {
	cfg := &model.EmbedderConfig{Provider: model.ProviderOpenAI}

	_, err := NewEmbedder(cfg, "", t.TempDir(), nil)
	if !errors.Is(err, ErrAPIKeyRequired) {
		t.Errorf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestNewEmbedder_OpenAI_BaseURL(t *testing.T) {
	baseURL := "http://localhost:9999/v1"
	cfg := &model.EmbedderConfig{
		Provider: model.ProviderOpenAI,
		BaseURL:  &baseURL,
	}

	emb, err := NewEmbedder(cfg, "key", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := emb.(*OpenAIEmbedder).baseURL; got != baseURL {
		t.Errorf("expected %s, got %s", baseURL, got)
	}
}

func TestNewEmbedder_Ollama(t *testing.T) {
	cfg := &model.EmbedderConfig{
		Provider: model.ProviderOllama,
		Model:    "nomic-embed-text",
		Dim:      768,
	}

	emb, err := NewEmbedder(cfg, "", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ollama, ok := emb.(*OpenAIEmbedder)
	if !ok {
		t.Fatalf("expected *OpenAIEmbedder, got %T", emb)
	}
	if ollama.baseURL != DefaultOllamaBaseURL {
		t.Errorf("expected %s, got %s", DefaultOllamaBaseURL, ollama.baseURL)
	}
	if ollama.model != "nomic-embed-text" {
		t.Errorf("expected nomic-embed-text, got %s", ollama.model)
	}
	if ollama.sendDims {
		t.Error("ollama should not send dimensions")
	}
}

func TestNewEmbedder_Local(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &model.EmbedderConfig{Provider: model.ProviderLocal}

	emb, err := NewEmbedder(cfg, "", dataDir, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	local, ok := emb.(*HugotEmbedder)
	if !ok {
		t.Fatalf("expected *HugotEmbedder, got %T", emb)
	}
	if local.modelDir != filepath.Join(dataDir, "models") {
		t.Errorf("unexpected model dir: %s", local.modelDir)
	}
	if local.GetDimension() != DefaultLocalDim {
		t.Errorf("expected dim %d, got %d", DefaultLocalDim, local.GetDimension())
	}
}

func TestNewEmbedder_Local_ModelDir(t *testing.T) {
	modelDir := t.TempDir()
	cfg := &model.EmbedderConfig{
		Provider: model.ProviderLocal,
		Model:    "custom/model",
		Dim:      512,
		ModelDir: &modelDir,
	}

	emb, err := NewEmbedder(cfg, "", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	local := emb.(*HugotEmbedder)
	if local.modelDir != modelDir {
		t.Errorf("expected %s, got %s", modelDir, local.modelDir)
	}
	if local.model != "custom/model" {
		t.Errorf("expected custom/model, got %s", local.model)
	}
	if local.GetDimension() != 512 {
		t.Errorf("expected 512, got %d", local.GetDimension())
	}
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	cfg := &model.EmbedderConfig{Provider: "unknown"}

	_, err := NewEmbedder(cfg, "", t.TempDir(), nil)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
