package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/service"
)

// ServerVersion はサーバーのバージョン（ビルド時に設定可能）
var ServerVersion = "0.1.0"

// ProtocolVersion はMCPのプロトコルバージョン
const ProtocolVersion = "2024-11-05"

var (
	minLimit       = 1
	maxLimit       = service.DefaultListLimit
	maxSearchLimit = service.MaxSearchLimit
	datePattern    = `^\d{4}-\d{2}-\d{2}$`
)

// mcpTools はtools/listで公開するツール
var mcpTools = []model.Tool{
	{
		Name:        "records_add",
		Description: "Store a new text record. The text is embedded for later semantic search.",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"text": {Type: "string", Description: "Text to store"},
			},
			Required: []string{"text"},
		},
	},
	{
		Name:        "records_list",
		Description: "List stored records, newest first.",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"limit": {Type: "integer", Description: "Maximum number of records (default 500)", Minimum: &minLimit, Maximum: &maxLimit},
			},
		},
	},
	{
		Name:        "records_search",
		Description: "Find records semantically similar to a query, optionally restricted to a date range.",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"query":     {Type: "string", Description: "Search text"},
				"startDate": {Type: "string", Description: "Inclusive start date (YYYY-MM-DD)", Pattern: datePattern},
				"endDate":   {Type: "string", Description: "Inclusive end date (YYYY-MM-DD)", Pattern: datePattern},
				"limit":     {Type: "integer", Description: "Maximum number of results (default 10)", Minimum: &minLimit, Maximum: &maxSearchLimit},
			},
			Required: []string{"query"},
		},
	},
	{
		Name:        "records_update",
		Description: "Replace the text of a record, keeping its id.",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"id":   {Type: "string", Description: "Record id"},
				"text": {Type: "string", Description: "New text"},
			},
			Required: []string{"id", "text"},
		},
	},
	{
		Name:        "records_delete",
		Description: "Delete a record by id. Deleting an unknown id succeeds.",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"id": {Type: "string", Description: "Record id"},
			},
			Required: []string{"id"},
		},
	},
	{
		Name:        "records_status",
		Description: "Report whether the record store has finished initializing.",
		InputSchema: model.JSONSchema{Type: "object"},
	},
}

// toolNameToMethod はツール名から内部メソッド名への対応
var toolNameToMethod = map[string]string{
	"records_add":    MethodAdd,
	"records_list":   MethodList,
	"records_search": MethodSearch,
	"records_update": MethodUpdate,
	"records_delete": MethodDelete,
	"records_status": MethodStatus,
}

// handleInitialize は initialize メソッドを処理
func (h *Handler) handleInitialize(params json.RawMessage) (any, error) {
	var p model.InitializeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ClientInfo.Name != "" {
		h.logger.Info("client connected", "client", p.ClientInfo.Name, "version", p.ClientInfo.Version)
	}

	return &model.InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: model.ServerInfo{
			Name:    "semstore",
			Version: ServerVersion,
		},
		Capabilities: model.Capabilities{
			Tools: &model.ToolsCapability{},
		},
	}, nil
}

// handleToolsList は tools/list メソッドを処理
func (h *Handler) handleToolsList() (any, error) {
	return &model.ToolsListResult{Tools: mcpTools}, nil
}

// outcome はsuccess/failureを持つ結果
type outcome interface {
	OK() bool
}

// handleToolsCall は tools/call メソッドを処理
// ツールの失敗はJSON-RPCエラーではなく isError=true の結果として返す
func (h *Handler) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p model.ToolsCallParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if p.Name == "" {
		return toolError("Error: tool name is required"), nil
	}

	method, ok := toolNameToMethod[p.Name]
	if !ok {
		return toolError(fmt.Sprintf("Tool not found: %s", p.Name)), nil
	}

	result, err := h.dispatchRecords(ctx, method, p.Arguments)
	if err != nil {
		return toolError(fmt.Sprintf("Error: %s", err.Error())), nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return toolError(fmt.Sprintf("Error serializing result: %s", err.Error())), nil
	}

	isError := false
	if o, ok := result.(outcome); ok {
		isError = !o.OK()
	}
	return model.NewToolResult(string(resultJSON), isError), nil
}

func toolError(message string) *model.ToolsCallResult {
	return model.NewToolResult(message, true)
}
