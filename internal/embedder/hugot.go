package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

const (
	// DefaultLocalModel はローカル埋め込みの既定モデル
	DefaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultLocalDim はDefaultLocalModelの出力次元
	DefaultLocalDim = 384
)

// HugotEmbedder はhugotのfeature extraction pipelineでローカル推論するEmbedder実装
//
// モデルはmodelDir（tokenizer.jsonを含むディレクトリ、またはそのサブディレクトリ）から読み込む。
// ダウンロードやキャッシュは行わない。推論はスレッドセーフでないためmutexで直列化する。
type HugotEmbedder struct {
	modelDir string
	model    string
	dim      int
	logger   *slog.Logger

	once    sync.Once
	loadErr error

	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// HugotOption はHugotEmbedderのオプション
type HugotOption func(*HugotEmbedder)

// WithHugotModel はモデル名を設定（ログ・サブディレクトリ探索用）
func WithHugotModel(model string) HugotOption {
	return func(e *HugotEmbedder) {
		e.model = model
	}
}

// WithHugotDim は期待する次元を設定
func WithHugotDim(dim int) HugotOption {
	return func(e *HugotEmbedder) {
		e.dim = dim
	}
}

// WithHugotLogger はロガーを設定
func WithHugotLogger(logger *slog.Logger) HugotOption {
	return func(e *HugotEmbedder) {
		e.logger = logger
	}
}

// NewHugotEmbedder は新しいHugotEmbedderを作成（モデルはまだロードしない）
func NewHugotEmbedder(modelDir string, opts ...HugotOption) *HugotEmbedder {
	e := &HugotEmbedder{
		modelDir: modelDir,
		model:    DefaultLocalModel,
		dim:      DefaultLocalDim,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load はモデルを一度だけロードする。失敗は以後も同じエラーを返す
func (e *HugotEmbedder) Load(ctx context.Context) error {
	e.once.Do(func() {
		if err := ctx.Err(); err != nil {
			e.loadErr = err
			return
		}
		e.loadErr = e.load()
	})
	return e.loadErr
}

func (e *HugotEmbedder) load() error {
	modelPath, err := e.resolveModelPath()
	if err != nil {
		return err
	}

	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "semstore-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	e.mu.Lock()
	e.session = session
	e.pipeline = pipeline
	e.mu.Unlock()

	e.logger.Info("embedding model loaded", "model", e.model, "path", modelPath, "dim", e.dim)
	return nil
}

// resolveModelPath はtokenizer.jsonを含むディレクトリを探す
// 優先順位: modelDir自身 → modelDir/<model名> → 最初に見つかったサブディレクトリ
func (e *HugotEmbedder) resolveModelPath() (string, error) {
	if hasTokenizer(e.modelDir) {
		return e.modelDir, nil
	}

	if e.model != "" {
		named := filepath.Join(e.modelDir, filepath.FromSlash(e.model))
		if hasTokenizer(named) {
			return named, nil
		}
	}

	entries, err := os.ReadDir(e.modelDir)
	if err != nil {
		return "", fmt.Errorf("%w: read model directory %s: %v", ErrModelNotFound, e.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(e.modelDir, entry.Name())
		if hasTokenizer(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no directory with tokenizer.json in %s", ErrModelNotFound, e.modelDir)
}

func hasTokenizer(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "tokenizer.json"))
	return err == nil
}

// Embed はテキストを埋め込みベクトルに変換
func (e *HugotEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pipeline == nil {
		return nil, ErrUninitialized
	}

	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := result.Embeddings[0]
	if err := checkDimension(vec, e.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

// GetDimension は次元を返す
func (e *HugotEmbedder) GetDimension() int {
	return e.dim
}

// Close はセッションを破棄する。未ロードなら何もしない
func (e *HugotEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.pipeline = nil
	return err
}

var (
	_ Embedder = (*HugotEmbedder)(nil)
	_ Loader   = (*HugotEmbedder)(nil)
)
