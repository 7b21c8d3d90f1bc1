package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	DefaultOllamaModel   = "all-minilm"
)

// OpenAIEmbedder はOpenAI互換のembeddings APIを使用するEmbedder実装
// Ollamaの /v1 エンドポイントにもbaseURLを変えるだけで接続できる
type OpenAIEmbedder struct {
	client       *openai.Client
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	model        string
	dim          int
	sendDims     bool
	allowNoToken bool
}

// OpenAIOption はOpenAIEmbedderのオプション
type OpenAIOption func(*OpenAIEmbedder)

// WithBaseURL はベースURLを設定
func WithBaseURL(url string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.baseURL = url
	}
}

// WithModel はモデルを設定
func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.model = model
	}
}

// WithDim は次元を設定し、APIにもdimensionsとして送る
func WithDim(dim int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.dim = dim
		e.sendDims = dim > 0
	}
}

// WithExpectedDim は次元を検証のみに使う（dimensions非対応のサーバー向け）
func WithExpectedDim(dim int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.dim = dim
		e.sendDims = false
	}
}

// WithHTTPClient はHTTPクライアントを設定
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.httpClient = client
	}
}

// withoutAPIKey はAPIキーなしを許可する（Ollama用）
func withoutAPIKey() OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.allowNoToken = true
	}
}

// NewOpenAIEmbedder は新しいOpenAIEmbedderを作成
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	e := &OpenAIEmbedder{
		httpClient: http.DefaultClient,
		baseURL:    DefaultOpenAIBaseURL,
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.apiKey == "" && !e.allowNoToken {
		return nil, ErrAPIKeyRequired
	}

	config := openai.DefaultConfig(e.apiKey)
	config.BaseURL = e.baseURL
	config.HTTPClient = e.httpClient
	e.client = openai.NewClientWithConfig(config)

	return e, nil
}

// NewOllamaEmbedder はOllamaのOpenAI互換APIを使うEmbedderを作成
func NewOllamaEmbedder(baseURL, model string, dim int, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	all := append([]OpenAIOption{
		WithBaseURL(baseURL),
		WithModel(model),
		WithExpectedDim(dim),
		withoutAPIKey(),
	}, opts...)
	return NewOpenAIEmbedder("", all...)
}

// Embed はテキストを埋め込みベクトルに変換
// L2距離が[0,2]に収まるよう、結果は正規化して返す
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.sendDims {
		req.Dimensions = e.dim
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		// context.Canceledやcontext.DeadlineExceededはそのまま返す
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wrapOpenAIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}

	embedding := resp.Data[0].Embedding
	if err := checkDimension(embedding, e.dim); err != nil {
		return nil, err
	}

	return Normalize(embedding), nil
}

// GetDimension は次元を返す（未設定なら0）
func (e *OpenAIEmbedder) GetDimension() int {
	return e.dim
}

// wrapOpenAIError はgo-openaiのエラーをAPIErrorに変換する
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
}

var _ Embedder = (*OpenAIEmbedder)(nil)
