package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// openAIResponse はOpenAI API応答の構造
type openAIResponse struct {
	Object string                `json:"object"`
	Data   []openAIEmbeddingData `json:"data"`
	Model  string                `json:"model"`
}

type openAIEmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingRequest はモックサーバーが受け取るリクエスト
type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// successHandler は正常応答を返すハンドラ
func successHandler(embedding []float32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Object: "list",
			Data: []openAIEmbeddingData{
				{Object: "embedding", Embedding: embedding, Index: 0},
			},
			Model: "text-embedding-3-small",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// errorHandler は指定ステータスとOpenAI形式のエラーを返すハンドラ
func errorHandler(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": message, "type": "invalid_request_error"},
		})
	}
}

func newTestOpenAIEmbedder(t *testing.T, server *httptest.Server, opts ...OpenAIOption) *OpenAIEmbedder {
	t.Helper()
	all := append([]OpenAIOption{WithBaseURL(server.URL), WithHTTPClient(server.Client())}, opts...)
	emb, err := NewOpenAIEmbedder("test-api-key", all...)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}
	return emb
}

func TestOpenAIEmbedder_NewEmbedder_APIKeyRequired(t *testing.T) {
	_, err := NewOpenAIEmbedder("")
	if !errors.Is(err, ErrAPIKeyRequired) {
		t.Errorf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_Success(t *testing.T) {
	server := httptest.NewServer(successHandler([]float32{3, 4}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	result, err := emb.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	// 正規化されて返る
	want := []float32{0.6, 0.8}
	if len(result) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(result))
	}
	for i := range want {
		if math.Abs(float64(result[i]-want[i])) > 1e-6 {
			t.Errorf("index %d: expected %f, got %f", i, want[i], result[i])
		}
	}
}

func TestOpenAIEmbedder_Embed_RequestBody(t *testing.T) {
	var received embeddingRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&received)
		successHandler([]float32{0.1, 0.2, 0.3})(w, r)
	}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server, WithModel("text-embedding-3-large"), WithDim(3))

	if _, err := emb.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if !strings.HasSuffix(path, "/embeddings") {
		t.Errorf("expected /embeddings path, got %s", path)
	}
	if received.Model != "text-embedding-3-large" {
		t.Errorf("expected model text-embedding-3-large, got %s", received.Model)
	}
	if received.Dimensions != 3 {
		t.Errorf("expected dimensions 3, got %d", received.Dimensions)
	}
	if len(received.Input) != 1 || received.Input[0] != "hello" {
		t.Errorf("unexpected input: %v", received.Input)
	}
}

func TestOpenAIEmbedder_Embed_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(successHandler([]float32{0.1, 0.2}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server, WithDim(3))

	_, err := emb.Embed(context.Background(), "text")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"rate limit", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(errorHandler(tt.status, "boom"))
			defer server.Close()

			emb := newTestOpenAIEmbedder(t, server)

			_, err := emb.Embed(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T (%v)", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if !errors.Is(err, ErrAPIRequestFailed) {
				t.Error("expected error to match ErrAPIRequestFailed")
			}
		})
	}
}

func TestOpenAIEmbedder_Embed_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{invalid json`))
	}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	_, err := emb.Embed(context.Background(), "text")
	if !errors.Is(err, ErrAPIRequestFailed) {
		t.Errorf("expected ErrAPIRequestFailed, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [], "model": "text-embedding-3-small"}`))
	}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	_, err := emb.Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(successHandler([]float32{}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	_, err := emb.Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		successHandler([]float32{0.1})(w, r)
	}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := emb.Embed(ctx, "text")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed_ContextDeadlineExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		successHandler([]float32{0.1})(w, r)
	}))
	defer server.Close()

	emb := newTestOpenAIEmbedder(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := emb.Embed(ctx, "text")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestOpenAIEmbedder_GetDimension(t *testing.T) {
	emb, _ := NewOpenAIEmbedder("test-key")
	if dim := emb.GetDimension(); dim != 0 {
		t.Errorf("expected 0, got %d", dim)
	}

	emb, _ = NewOpenAIEmbedder("test-key", WithDim(384))
	if dim := emb.GetDimension(); dim != 384 {
		t.Errorf("expected 384, got %d", dim)
	}
}

func TestOllamaEmbedder_NoAPIKeyAndNoDimensions(t *testing.T) {
	var received embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" && auth != "Bearer " {
			t.Errorf("unexpected Authorization header: %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&received)
		successHandler([]float32{1, 0, 0})(w, r)
	}))
	defer server.Close()

	emb, err := NewOllamaEmbedder(server.URL, "", 3, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("failed to create ollama embedder: %v", err)
	}

	if _, err := emb.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if received.Model != DefaultOllamaModel {
		t.Errorf("expected model %s, got %s", DefaultOllamaModel, received.Model)
	}
	if received.Dimensions != 0 {
		t.Errorf("expected dimensions to be omitted, got %d", received.Dimensions)
	}
	if emb.GetDimension() != 3 {
		t.Errorf("expected dim 3, got %d", emb.GetDimension())
	}
}
