// Package jsonrpc implements the JSON-RPC 2.0 boundary of semstore: the
// records.* methods and the MCP tool surface on top of them.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/service"
)

// メソッド名
const (
	MethodAdd    = "records.add"
	MethodList   = "records.list"
	MethodSearch = "records.search"
	MethodUpdate = "records.update"
	MethodDelete = "records.delete"
	MethodStatus = "records.status"

	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodPing        = "ping"
)

// StateReporter は初期化状態を返す（service.Gate）
type StateReporter interface {
	State() (service.State, error)
}

// Handler はJSON-RPCリクエストを処理する
type Handler struct {
	records service.RecordService
	state   StateReporter
	logger  *slog.Logger
}

// Option はHandlerのオプション
type Option func(*Handler)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New は新しいHandlerを生成
// stateがnilの場合、records.statusは常にreadyを返す
func New(records service.RecordService, state StateReporter, opts ...Option) *Handler {
	h := &Handler{
		records: records,
		state:   state,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// request はidの有無を区別するための受信用構造
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Handle はJSON-RPCリクエストをパースしてディスパッチ
// 戻り値は *model.Response または *model.ErrorResponse のJSON bytes。
// 通知（idなし）の場合はnilを返す
func (h *Handler) Handle(ctx context.Context, requestBytes []byte) []byte {
	// 1. パース
	var req request
	if err := json.Unmarshal(requestBytes, &req); err != nil {
		return encode(model.NewParseError(err.Error()))
	}

	var id any
	isNotification := len(req.ID) == 0
	if !isNotification {
		if err := json.Unmarshal(req.ID, &id); err != nil {
			return encode(model.NewInvalidRequest(nil, "invalid id"))
		}
		switch id.(type) {
		case nil, string, float64:
		default:
			return encode(model.NewInvalidRequest(nil, "id must be a string, number or null"))
		}
	}

	// 2. バージョン確認
	if req.JSONRPC != model.Version {
		return encode(model.NewInvalidRequest(id, "jsonrpc must be 2.0"))
	}

	// 3. method確認
	if req.Method == "" {
		return encode(model.NewInvalidRequest(id, "method is required"))
	}

	// 4. ディスパッチ
	result, err := h.dispatch(ctx, req.Method, req.Params)
	if isNotification {
		if err != nil {
			h.logger.Debug("notification failed", "method", req.Method, "error", err)
		}
		return nil
	}
	if err != nil {
		return encode(h.mapError(id, err))
	}

	// 5. 成功レスポンス
	return encode(model.NewResponse(id, result))
}

// dispatch はメソッドに応じて適切なハンドラーを呼び出す
func (h *Handler) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodInitialize:
		return h.handleInitialize(params)
	case MethodInitialized:
		return struct{}{}, nil
	case MethodPing:
		return struct{}{}, nil
	case MethodToolsList:
		return h.handleToolsList()
	case MethodToolsCall:
		return h.handleToolsCall(ctx, params)
	default:
		return h.dispatchRecords(ctx, method, params)
	}
}

// dispatchRecords は records.* メソッドを呼び出す（tools/callからも使う）
func (h *Handler) dispatchRecords(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodAdd:
		return h.handleAdd(ctx, params)
	case MethodList:
		return h.handleList(ctx, params)
	case MethodSearch:
		return h.handleSearch(ctx, params)
	case MethodUpdate:
		return h.handleUpdate(ctx, params)
	case MethodDelete:
		return h.handleDelete(ctx, params)
	case MethodStatus:
		return h.handleStatus()
	default:
		return nil, &methodNotFoundError{method: method}
	}
}

// mapError はプロトコルエラーをJSON-RPCエラーに変換
// 操作の失敗はここに来ない（結果の success=false で返す）
func (h *Handler) mapError(id any, err error) *model.ErrorResponse {
	var mnfErr *methodNotFoundError
	if errors.As(err, &mnfErr) {
		return model.NewMethodNotFound(id, mnfErr.method)
	}

	var paramsErr *invalidParamsError
	if errors.As(err, &paramsErr) {
		return model.NewInvalidParams(id, paramsErr.Error())
	}

	h.logger.Error("internal error", "error", err)
	return model.NewInternalError(id, err.Error())
}

// encode はレスポンスをJSONにする
func encode(resp any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		b, _ := json.Marshal(model.NewInternalError(nil, err.Error()))
		return b
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// methodNotFoundError はメソッド未検出エラー
type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return "method not found: " + e.method
}

// invalidParamsError はパラメータの形式エラー
type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string {
	return "invalid params: " + e.err.Error()
}

func (e *invalidParamsError) Unwrap() error {
	return e.err
}
