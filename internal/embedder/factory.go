package embedder

import (
	"log/slog"
	"path/filepath"

	"github.com/brbranch/semstore/internal/model"
)

// NewEmbedder はEmbedderConfigからEmbedderを作成
// dataDirはlocalプロバイダでmodelDir未指定時の基準ディレクトリ
func NewEmbedder(cfg *model.EmbedderConfig, envAPIKey, dataDir string, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case model.ProviderLocal, "":
		modelDir := filepath.Join(dataDir, "models")
		if cfg.ModelDir != nil && *cfg.ModelDir != "" {
			modelDir = *cfg.ModelDir
		}
		opts := []HugotOption{WithHugotLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, WithHugotModel(cfg.Model))
		}
		if cfg.Dim > 0 {
			opts = append(opts, WithHugotDim(cfg.Dim))
		}
		return NewHugotEmbedder(modelDir, opts...), nil

	case model.ProviderOpenAI:
		// APIKey解決: cfg.APIKey > envAPIKey
		apiKey := envAPIKey
		if cfg.APIKey != nil && *cfg.APIKey != "" {
			apiKey = *cfg.APIKey
		}

		opts := []OpenAIOption{}
		if cfg.BaseURL != nil && *cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(*cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		if cfg.Dim > 0 {
			opts = append(opts, WithDim(cfg.Dim))
		}
		return NewOpenAIEmbedder(apiKey, opts...)

	case model.ProviderOllama:
		baseURL := DefaultOllamaBaseURL
		if cfg.BaseURL != nil && *cfg.BaseURL != "" {
			baseURL = *cfg.BaseURL
		}
		return NewOllamaEmbedder(baseURL, cfg.Model, cfg.Dim)

	default:
		return nil, ErrUnknownProvider
	}
}
