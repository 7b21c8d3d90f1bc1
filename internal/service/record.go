package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brbranch/semstore/internal/embedder"
	"github.com/brbranch/semstore/internal/idgen"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/store"
)

// recordService はRecordServiceの実装
type recordService struct {
	embedder    embedder.Embedder
	table       store.Table
	ids         idgen.Generator
	now         func() time.Time
	loc         *time.Location
	logger      *slog.Logger
	searchLimit int
	listLimit   int
}

// Option はrecordServiceのオプション
type Option func(*recordService)

// WithClock は現在時刻の取得関数を設定
func WithClock(now func() time.Time) Option {
	return func(s *recordService) {
		s.now = now
	}
}

// WithIDGenerator はID生成器を設定
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *recordService) {
		s.ids = g
	}
}

// WithLocation は日付フィルタの暦日を解釈するタイムゾーンを設定
func WithLocation(loc *time.Location) Option {
	return func(s *recordService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger はロガーを設定
func WithLogger(logger *slog.Logger) Option {
	return func(s *recordService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSearchLimit は検索件数の既定値を設定（MaxSearchLimitを超える値は無視）
func WithSearchLimit(n int) Option {
	return func(s *recordService) {
		if n > 0 && n <= MaxSearchLimit {
			s.searchLimit = n
		}
	}
}

// WithListLimit は一覧件数の既定値を設定（DefaultListLimitを超える値は切り詰め）
func WithListLimit(n int) Option {
	return func(s *recordService) {
		if n > 0 && n <= DefaultListLimit {
			s.listLimit = n
		}
	}
}

// NewRecordService はRecordServiceの新しいインスタンスを作成
func NewRecordService(emb embedder.Embedder, table store.Table, opts ...Option) RecordService {
	s := &recordService{
		embedder:    emb,
		table:       table,
		ids:         idgen.NewUUIDGenerator(),
		now:         time.Now,
		loc:         time.Local,
		logger:      slog.Default(),
		searchLimit: DefaultSearchLimit,
		listLimit:   DefaultListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add はテキストを埋め込み、新しいレコードとして保存する
func (s *recordService) Add(ctx context.Context, text string) (*model.Item, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextRequired
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, embeddingError(OpAdd, err)
	}

	ts := model.Millis(s.now())
	record := &model.Record{
		ID:        s.ids.NewID(),
		Text:      text,
		Vector:    vec,
		Timestamp: ts,
		CreatedAt: ts,
	}

	if err := s.table.Append(ctx, []*model.Record{record}); err != nil {
		return nil, storageError(OpAdd, err)
	}

	s.logger.Debug("record added", "id", record.ID, "timestamp", ts)
	item := record.ToItem()
	return &item, nil
}

// List は新しい順に最大limit件を返す
func (s *recordService) List(ctx context.Context, limit int) ([]model.Item, error) {
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}

	records, err := s.table.ScanAll(ctx, limit)
	if err != nil {
		return nil, storageError(OpList, err)
	}

	// timestamp降順、同時刻はid昇順
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp > records[j].Timestamp
		}
		return records[i].ID < records[j].ID
	})

	items := make([]model.Item, 0, len(records))
	for _, r := range records {
		items = append(items, r.ToItem())
	}
	return items, nil
}

// Search はクエリに近いレコードを距離昇順で返す
// 空のクエリは埋め込みを行わずに空の結果を返す
func (s *recordService) Search(ctx context.Context, req *SearchRequest) ([]model.ScoredItem, error) {
	since, until, err := parseDateRange(req.StartDate, req.EndDate, s.loc)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Query) == "" {
		return []model.ScoredItem{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.searchLimit
	}
	limit = min(limit, MaxSearchLimit)

	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, embeddingError(OpSearch, err)
	}

	var filter *store.Predicate
	if since != nil || until != nil {
		filter = &store.Predicate{Since: since, Until: until}
		s.logger.Debug("search filter", "where", filter.String())
	}

	neighbors, err := s.table.SearchNearest(ctx, vec, limit, filter)
	if err != nil {
		return nil, storageError(OpSearch, err)
	}

	results := make([]model.ScoredItem, 0, len(neighbors))
	for _, n := range neighbors {
		results = append(results, model.ScoredItem{
			Item:       n.Record.ToItem(),
			Score:      n.Distance,
			Similarity: store.SimilarityFromDistance(n.Distance),
		})
	}
	return results, nil
}

// Update はidのレコードを新しいテキストで置き換える（削除+再挿入）
//
// 削除と挿入の間で異常終了するとidは失われる。
// 存在しないidの更新はそのidで新規作成になる。
func (s *recordService) Update(ctx context.Context, id, text string) (*model.Item, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextRequired
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, embeddingError(OpUpdate, err)
	}

	ts := model.Millis(s.now())
	createdAt := ts
	old, err := s.table.Get(ctx, id)
	switch {
	case err == nil:
		createdAt = old.CreatedAt
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("update of unknown id creates a new record", "id", id)
	default:
		return nil, storageError(OpUpdate, err)
	}

	pred := store.ByID(id)
	if err := s.table.DeleteWhere(ctx, pred); err != nil {
		return nil, storageError(OpUpdate, err)
	}
	s.logger.Debug("update: old rows deleted", "where", pred.String())

	record := &model.Record{
		ID:        id,
		Text:      text,
		Vector:    vec,
		Timestamp: ts,
		CreatedAt: createdAt,
	}
	if err := s.table.Append(ctx, []*model.Record{record}); err != nil {
		s.logger.Error("update: reinsert failed after delete", "id", id, "error", err)
		return nil, storageError(OpUpdate, err)
	}
	s.logger.Debug("update: record reinserted", "id", id, "timestamp", ts)

	item := record.ToItem()
	return &item, nil
}

// Delete はidのレコードを削除する（存在しなくても成功）
// 空のidに一致するレコードは無いので、テーブルに触れずに成功を返す
func (s *recordService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := s.table.DeleteWhere(ctx, store.ByID(id)); err != nil {
		return storageError(OpDelete, err)
	}

	s.logger.Debug("record deleted", "id", id)
	return nil
}
