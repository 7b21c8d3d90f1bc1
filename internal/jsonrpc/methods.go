package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/service"
)

var errParamsNotObject = errors.New("params must be an object")

// ErrorCode は操作の失敗をresultのcodeに変換する
func ErrorCode(err error) string {
	if service.IsValidation(err) {
		return model.CodeInvalidParams
	}
	switch service.KindOf(err) {
	case service.KindNotReady:
		return model.CodeNotReady
	case service.KindInitialization:
		return model.CodeInitialization
	case service.KindEmbedding:
		return model.CodeEmbedding
	case service.KindStorage:
		return model.CodeStorage
	default:
		return model.CodeInternal
	}
}

// failure は失敗Outcomeを作り、ログに残す
func (h *Handler) failure(method string, err error) model.Outcome {
	code := ErrorCode(err)
	switch code {
	case model.CodeInvalidParams, model.CodeNotReady:
		h.logger.Debug("operation rejected", "method", method, "code", code, "error", err)
	default:
		h.logger.Warn("operation failed", "method", method, "code", code, "error", err)
	}
	return model.Failed(code, err.Error())
}

// handleAdd は records.add を処理
func (h *Handler) handleAdd(ctx context.Context, params json.RawMessage) (any, error) {
	var p AddParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	item, err := h.records.Add(ctx, p.Text)
	if err != nil {
		return &model.ItemResult{Outcome: h.failure(MethodAdd, err)}, nil
	}
	return &model.ItemResult{Outcome: model.Succeeded(), Item: item}, nil
}

// handleList は records.list を処理
func (h *Handler) handleList(ctx context.Context, params json.RawMessage) (any, error) {
	var p ListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	limit := 0
	if p.Limit != nil {
		limit = *p.Limit
	}

	items, err := h.records.List(ctx, limit)
	if err != nil {
		return &model.ListResult{Outcome: h.failure(MethodList, err)}, nil
	}
	if items == nil {
		items = []model.Item{}
	}
	return &model.ListResult{Outcome: model.Succeeded(), Items: &items}, nil
}

// handleSearch は records.search を処理
func (h *Handler) handleSearch(ctx context.Context, params json.RawMessage) (any, error) {
	var p SearchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	results, err := h.records.Search(ctx, p.ToRequest())
	if err != nil {
		return &model.SearchResult{Outcome: h.failure(MethodSearch, err)}, nil
	}
	if results == nil {
		results = []model.ScoredItem{}
	}
	return &model.SearchResult{Outcome: model.Succeeded(), Results: &results}, nil
}

// handleUpdate は records.update を処理
func (h *Handler) handleUpdate(ctx context.Context, params json.RawMessage) (any, error) {
	var p UpdateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	item, err := h.records.Update(ctx, p.ID, p.Text)
	if err != nil {
		return &model.ItemResult{Outcome: h.failure(MethodUpdate, err)}, nil
	}
	return &model.ItemResult{Outcome: model.Succeeded(), Item: item}, nil
}

// handleDelete は records.delete を処理
func (h *Handler) handleDelete(ctx context.Context, params json.RawMessage) (any, error) {
	var p DeleteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := h.records.Delete(ctx, p.ID); err != nil {
		return &model.DeleteResult{Outcome: h.failure(MethodDelete, err)}, nil
	}
	return &model.DeleteResult{Outcome: model.Succeeded(), ID: p.ID}, nil
}

// handleStatus は records.status を処理
func (h *Handler) handleStatus() (any, error) {
	if h.state == nil {
		return &model.StatusResult{State: string(service.StateReady)}, nil
	}
	state, err := h.state.State()
	res := &model.StatusResult{State: string(state)}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}
