package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/brbranch/semstore/internal/service"
)

// AddParams は records.add のパラメータ
type AddParams struct {
	Text string `json:"text"`
}

// ListParams は records.list のパラメータ
type ListParams struct {
	Limit *int `json:"limit"`
}

// SearchParams は records.search のパラメータ
type SearchParams struct {
	Query     string  `json:"query"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Limit     *int    `json:"limit"`
}

// ToRequest はサービスリクエストに変換
func (p *SearchParams) ToRequest() *service.SearchRequest {
	req := &service.SearchRequest{Query: p.Query}
	if p.StartDate != nil {
		req.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		req.EndDate = *p.EndDate
	}
	if p.Limit != nil {
		req.Limit = *p.Limit
	}
	return req
}

// UpdateParams は records.update のパラメータ
type UpdateParams struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DeleteParams は records.delete のパラメータ
type DeleteParams struct {
	ID string `json:"id"`
}

// decodeParams はparamsをtargetにデコードする
// 省略またはnullはゼロ値のまま。形式が合わない場合はinvalidParamsError
func decodeParams(raw json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return &invalidParamsError{err: errParamsNotObject}
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return &invalidParamsError{err: err}
	}
	return nil
}
