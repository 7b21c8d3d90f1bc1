package model

// Outcome は全操作結果に共通するタグ部分
// Success=falseの場合のみErrorとCodeが設定される
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ItemResult は add / update の結果
type ItemResult struct {
	Outcome
	Item *Item `json:"item,omitempty"`
}

// ListResult は list の結果
// 成功時は空でも [] を出力するためポインタで保持する
type ListResult struct {
	Outcome
	Items *[]Item `json:"items,omitempty"`
}

// SearchResult は search の結果
type SearchResult struct {
	Outcome
	Results *[]ScoredItem `json:"results,omitempty"`
}

// DeleteResult は delete の結果
type DeleteResult struct {
	Outcome
	ID string `json:"id,omitempty"`
}

// StatusResult はストアの初期化状態
type StatusResult struct {
	State string `json:"state"` // "starting" | "ready" | "failed"
	Error string `json:"error,omitempty"`
}

// OK は成功したかを返す
func (o Outcome) OK() bool {
	return o.Success
}

// Succeeded は成功Outcomeを返す
func Succeeded() Outcome {
	return Outcome{Success: true}
}

// Failed は失敗Outcomeを返す
func Failed(code, message string) Outcome {
	return Outcome{Success: false, Error: message, Code: code}
}

// 失敗結果のcode
const (
	CodeInvalidParams  = "invalid_params"
	CodeNotReady       = "not_ready"
	CodeInitialization = "initialization"
	CodeEmbedding      = "embedding"
	CodeStorage        = "storage"
	CodeInternal       = "internal"
)
