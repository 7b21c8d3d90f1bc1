//go:build e2e

package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brbranch/semstore/internal/embedder"
	"github.com/brbranch/semstore/internal/jsonrpc"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/service"
	"github.com/brbranch/semstore/internal/store"
)

const testDim = 128

// mockEmbedder はテスト用のモックEmbedder
// 決定論的な埋め込みベクトルを生成（テキストのハッシュから）
type mockEmbedder struct {
	dim int
}

// Embed はテキストから決定論的な単位ベクトルを生成
func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := sha256.Sum256([]byte(text))

	vec := make([]float32, m.dim)
	for i := 0; i < m.dim; i++ {
		// 4バイトずつ読み込んでfloat32に変換
		offset := (i * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		vec[i] = float32(val)/float32(0xFFFFFFFF) - 0.5
	}

	return embedder.Normalize(vec), nil
}

// GetDimension はベクトルの次元数を返す
func (m *mockEmbedder) GetDimension() int {
	return m.dim
}

// testClock は手動で進められる時計
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// setupTestHandler はメモリテーブルとモックEmbedderでHandlerを構築
// 戻り値のGateは既にreadyで、時計はUTCの2024-01-15 12:00から始まる
func setupTestHandler(t *testing.T) (*jsonrpc.Handler, *testClock) {
	t.Helper()

	clock := newTestClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))
	table := store.NewMemoryTable(testDim)
	t.Cleanup(func() { _ = table.Close() })

	svc := service.NewRecordService(&mockEmbedder{dim: testDim}, table,
		service.WithClock(clock.Now),
		service.WithLocation(time.UTC),
	)

	gate := service.NewGate()
	gate.Ready(service.Instrument(svc))

	return jsonrpc.New(gate, gate), clock
}

// call はメソッドを呼び出して生のレスポンスを返す
func call(t *testing.T, h *jsonrpc.Handler, method string, params any) *RawResponse {
	t.Helper()

	reqBytes, err := json.Marshal(model.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	respBytes := h.Handle(context.Background(), reqBytes)

	var resp RawResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return &resp
}

// callResult はメソッドを呼び出し、resultをoutにデコードする
// JSON-RPCエラーの場合はテストを失敗させる
func callResult(t *testing.T, h *jsonrpc.Handler, method string, params any, out any) {
	t.Helper()

	resp := call(t, h, method, params)
	if resp.Error != nil {
		t.Fatalf("%s failed: %+v", method, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
}

// callAdd はrecords.addを呼び出し、成功を確認する
func callAdd(t *testing.T, h *jsonrpc.Handler, text string) model.Item {
	t.Helper()

	var res model.ItemResult
	callResult(t, h, jsonrpc.MethodAdd, map[string]any{"text": text}, &res)
	if !res.Success || res.Item == nil {
		t.Fatalf("add failed: %+v", res.Outcome)
	}
	return *res.Item
}

// callSearch はrecords.searchを呼び出す
func callSearch(t *testing.T, h *jsonrpc.Handler, params map[string]any) *model.SearchResult {
	t.Helper()

	var res model.SearchResult
	callResult(t, h, jsonrpc.MethodSearch, params, &res)
	return &res
}

// callList はrecords.listを呼び出す
func callList(t *testing.T, h *jsonrpc.Handler, params map[string]any) *model.ListResult {
	t.Helper()

	var res model.ListResult
	callResult(t, h, jsonrpc.MethodList, params, &res)
	return &res
}

// RawResponse はresultを遅延デコードするレスポンス
type RawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *model.RPCError `json:"error,omitempty"`
}

var errModelMissing = errors.New("model files not found")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
