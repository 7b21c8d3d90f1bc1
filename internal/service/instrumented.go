package service

import (
	"context"
	"time"

	"github.com/brbranch/semstore/internal/embedder"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/observability"
)

// instrumented は操作ごとの件数と所要時間を記録するRecordService
type instrumented struct {
	next RecordService
}

// Instrument はsvcをメトリクス記録付きでラップする
func Instrument(svc RecordService) RecordService {
	return &instrumented{next: svc}
}

// outcome はメトリクスのoutcomeラベルを返す
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "invalid"
	}
	if k := KindOf(err); k != "" {
		return string(k)
	}
	return "internal"
}

func observe(op string, start time.Time, err error) {
	observability.OperationsTotal.WithLabelValues(op, outcome(err)).Inc()
	observability.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *instrumented) Add(ctx context.Context, text string) (item *model.Item, err error) {
	defer func(start time.Time) { observe(OpAdd, start, err) }(time.Now())
	return m.next.Add(ctx, text)
}

func (m *instrumented) List(ctx context.Context, limit int) (items []model.Item, err error) {
	defer func(start time.Time) { observe(OpList, start, err) }(time.Now())
	return m.next.List(ctx, limit)
}

func (m *instrumented) Search(ctx context.Context, req *SearchRequest) (results []model.ScoredItem, err error) {
	defer func(start time.Time) { observe(OpSearch, start, err) }(time.Now())
	return m.next.Search(ctx, req)
}

func (m *instrumented) Update(ctx context.Context, id, text string) (item *model.Item, err error) {
	defer func(start time.Time) { observe(OpUpdate, start, err) }(time.Now())
	return m.next.Update(ctx, id, text)
}

func (m *instrumented) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe(OpDelete, start, err) }(time.Now())
	return m.next.Delete(ctx, id)
}

// instrumentedEmbedder は埋め込みの所要時間を記録するEmbedder
type instrumentedEmbedder struct {
	embedder.Embedder
}

// InstrumentEmbedder はembを埋め込み時間の記録付きでラップする
// Loaderの実装はそのまま引き継ぐ
func InstrumentEmbedder(emb embedder.Embedder) embedder.Embedder {
	if l, ok := emb.(embedder.Loader); ok {
		return &instrumentedLoader{instrumentedEmbedder{emb}, l}
	}
	return &instrumentedEmbedder{emb}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.Embedder.Embed(ctx, text)
	label := "ok"
	if err != nil {
		label = "error"
	}
	observability.EmbedDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return vec, err
}

type instrumentedLoader struct {
	instrumentedEmbedder
	loader embedder.Loader
}

func (e *instrumentedLoader) Load(ctx context.Context) error {
	return e.loader.Load(ctx)
}
