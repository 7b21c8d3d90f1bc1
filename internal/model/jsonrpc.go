package model

// Version はサポートするJSON-RPCのバージョン
const Version = "2.0"

// Request はJSON-RPC 2.0リクエスト
// IDがないものは通知として扱い、応答しない
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"` // string | number | null
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response は成功レスポンス
// 操作の失敗もResultのタグ付き結果（success=false）として返す
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

// ErrorResponse はプロトコルレベルのエラーレスポンス
type ErrorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      any      `json:"id"` // パース失敗時はnull
	Error   RPCError `json:"error"`
}

// RPCError はJSON-RPC 2.0エラーオブジェクト
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC 2.0 標準エラーコード
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Notification はサーバーから送る通知（IDなし）
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// 初期化結果の通知名
const (
	NotifyReady      = "records.ready"
	NotifyInitFailed = "records.initFailed"
)

// InitFailedParams は records.initFailed 通知のパラメータ
type InitFailedParams struct {
	Message string `json:"message"`
}

// NewResponse は成功レスポンスを生成
func NewResponse(id any, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewNotification は通知を生成
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// NewReadyNotification は records.ready 通知を生成（paramsは空オブジェクト）
func NewReadyNotification() *Notification {
	return NewNotification(NotifyReady, struct{}{})
}

// NewInitFailedNotification は records.initFailed 通知を生成
func NewInitFailedNotification(message string) *Notification {
	return NewNotification(NotifyInitFailed, InitFailedParams{Message: message})
}

// NewErrorResponse はエラーレスポンスを生成
func NewErrorResponse(id any, code int, message string, data any) *ErrorResponse {
	return &ErrorResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   RPCError{Code: code, Message: message, Data: data},
	}
}

// NewParseError はパースエラー（IDはnull）
func NewParseError(data any) *ErrorResponse {
	return NewErrorResponse(nil, ErrCodeParseError, "Parse error", data)
}

// NewInvalidRequest は無効リクエストエラー
func NewInvalidRequest(id any, data any) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInvalidRequest, "Invalid Request", data)
}

// NewMethodNotFound はメソッド未検出エラー（dataにメソッド名）
func NewMethodNotFound(id any, method string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeMethodNotFound, "Method not found", method)
}

// NewInvalidParams は無効パラメータエラー
func NewInvalidParams(id any, message string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInvalidParams, message, nil)
}

// NewInternalError は内部エラー
func NewInternalError(id any, message string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInternalError, message, nil)
}
