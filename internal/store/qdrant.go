package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brbranch/semstore/internal/model"
	"github.com/qdrant/go-client/qdrant"
)

// payloadのキー
const (
	payloadID        = "id"
	payloadText      = "text"
	payloadTimestamp = "timestamp"
	payloadCreatedAt = "createdAt"
)

// QdrantOptions はQdrantTableのオプション
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Logger     *slog.Logger
}

// QdrantTable はQdrantを使用したTable実装（Euclid距離）
type QdrantTable struct {
	client     *qdrant.Client
	collection string
	dim        int
	logger     *slog.Logger
	closed     bool
	mu         sync.RWMutex // closedフラグの保護
}

// sanitizeCollectionName はQdrantのコレクション名として使用できる文字列に変換する
// Qdrantは ":" などの特殊文字をコレクション名に使用できないため
func sanitizeCollectionName(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}

// parseQdrantAddress はURLからgRPCのホストとポートを取り出す
// HTTPポート6333が指定された場合はgRPCポート6334に変換する
func parseQdrantAddress(urlStr string) (host string, port int, useTLS bool, err error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse URL: %w", err)
	}

	host = parsedURL.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("missing host in qdrant URL %q", urlStr)
	}

	port = 6334
	if portStr := parsedURL.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port %q: %w", portStr, err)
		}
		if p != 6333 {
			port = p
		}
	}

	return host, port, parsedURL.Scheme == "https", nil
}

// NewQdrantTable はQdrantに接続し、コレクションが無ければ作成する
func NewQdrantTable(ctx context.Context, opts QdrantOptions) (*QdrantTable, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	host, port, useTLS, err := parseQdrantAddress(opts.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 opts.APIKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true, // バージョンチェックをスキップ
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	// 接続確認
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	t := &QdrantTable{
		client:     client,
		collection: sanitizeCollectionName(opts.Collection),
		dim:        opts.Dimension,
		logger:     opts.Logger,
	}

	if err := t.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return t, nil
}

// ensureCollection はコレクションとpayloadインデックスを用意し、次元を検証する
func (t *QdrantTable) ensureCollection(ctx context.Context) error {
	exists, err := t.client.CollectionExists(ctx, t.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		info, err := t.client.GetCollectionInfo(ctx, t.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		if params != nil && int(params.GetSize()) != t.dim {
			return fmt.Errorf("%w: collection has %d, configured %d", ErrDimensionMismatch, params.GetSize(), t.dim)
		}
		if params != nil && params.GetDistance() != qdrant.Distance_Euclid {
			return fmt.Errorf("collection %s uses %s distance, expected Euclid", t.collection, params.GetDistance())
		}
		return nil
	}

	err = t.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: t.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(t.dim),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// idの完全一致とtimestampの範囲・並び替えに使うインデックス
	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{payloadID, qdrant.FieldType_FieldTypeKeyword},
		{payloadTimestamp, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := t.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: t.collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create %s index: %w", idx.field, err)
		}
	}

	t.logger.Info("qdrant collection created", "collection", t.collection, "dimension", t.dim)
	return nil
}

// isClosed はクローズ状態を安全に取得する
func (t *QdrantTable) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Append はレコードを追加する
// 同じidのポイントは同じ数値IDになるため上書きされる
func (t *QdrantTable) Append(ctx context.Context, records []*model.Record) error {
	if err := validateRecords(records, t.dim); err != nil {
		return err
	}
	if t.isClosed() {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(hashID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: buildPayload(r),
		})
	}

	_, err := t.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: t.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeleteWhere はフィルタセレクタで一致するポイントを削除する
func (t *QdrantTable) DeleteWhere(ctx context.Context, pred Predicate) error {
	if t.isClosed() {
		return ErrClosed
	}

	// 空のフィルタは全件一致
	filter := buildFilter(&pred)
	if filter == nil {
		filter = &qdrant.Filter{}
	}

	_, err := t.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: t.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// ScanAll はtimestamp降順で最大limit件を返す（ベクトルは含まない）
func (t *QdrantTable) ScanAll(ctx context.Context, limit int) ([]*model.Record, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}

	req := &qdrant.ScrollPoints{
		CollectionName: t.collection,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
		OrderBy: &qdrant.OrderBy{
			Key:       payloadTimestamp,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	}
	if limit > 0 {
		req.Limit = qdrant.PtrOf(uint32(limit))
	}

	points, err := t.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	records := make([]*model.Record, 0, len(points))
	for _, p := range points {
		records = append(records, payloadToRecord(p.GetPayload()))
	}
	return records, nil
}

// SearchNearest はEuclid距離で近傍を返す（Qdrantのscoreは距離そのもの）
func (t *QdrantTable) SearchNearest(ctx context.Context, query []float32, limit int, filter *Predicate) ([]Neighbor, error) {
	if err := checkQuery(query, t.dim); err != nil {
		return nil, err
	}
	if t.isClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []Neighbor{}, nil
	}

	points, err := t.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: t.collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(points))
	for _, p := range points {
		neighbors = append(neighbors, Neighbor{
			Record:   payloadToRecord(p.GetPayload()),
			Distance: float64(p.GetScore()),
		})
	}
	return rankNeighbors(neighbors, limit), nil
}

// Get はidのポイントを返す
func (t *QdrantTable) Get(ctx context.Context, id string) (*model.Record, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}

	points, err := t.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: t.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(hashID(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}

	r := payloadToRecord(points[0].GetPayload())
	// ハッシュ衝突の確認
	if r.ID != id {
		return nil, ErrNotFound
	}
	return r, nil
}

// Dimension はベクトル次元を返す
func (t *QdrantTable) Dimension() int {
	return t.dim
}

// Close はクライアントをクローズする
func (t *QdrantTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.client.Close()
}

// Helper functions

// hashID は文字列IDを数値IDに変換する
func hashID(id string) uint64 {
	// SHA256ハッシュの先頭8バイトを使用して衝突耐性を向上
	h := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(h[:8])
}

// buildFilter はPredicateからQdrantのフィルタを構築する（条件なしはnil）
func buildFilter(p *Predicate) *qdrant.Filter {
	if p == nil || p.IsEmpty() {
		return nil
	}

	var conditions []*qdrant.Condition
	if p.ID != nil {
		conditions = append(conditions, qdrant.NewMatch(payloadID, *p.ID))
	}

	// 時間範囲フィルタ（両端を含む）
	if p.Since != nil || p.Until != nil {
		r := &qdrant.Range{}
		if p.Since != nil {
			since := float64(*p.Since)
			r.Gte = &since
		}
		if p.Until != nil {
			until := float64(*p.Until)
			r.Lte = &until
		}
		conditions = append(conditions, qdrant.NewRange(payloadTimestamp, r))
	}

	return &qdrant.Filter{Must: conditions}
}

// buildPayload はRecordからQdrantのpayloadを構築する
func buildPayload(r *model.Record) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadID:        qdrant.NewValueString(r.ID),
		payloadText:      qdrant.NewValueString(r.Text),
		payloadTimestamp: qdrant.NewValueInt(r.Timestamp),
		payloadCreatedAt: qdrant.NewValueInt(r.CreatedAt),
	}
}

// payloadToRecord はQdrantのpayloadからRecordを構築する（Vectorは含まない）
func payloadToRecord(payload map[string]*qdrant.Value) *model.Record {
	r := &model.Record{}
	if v, ok := payload[payloadID]; ok {
		r.ID = v.GetStringValue()
	}
	if v, ok := payload[payloadText]; ok {
		r.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadTimestamp]; ok {
		r.Timestamp = payloadInt(v)
	}
	if v, ok := payload[payloadCreatedAt]; ok {
		r.CreatedAt = payloadInt(v)
	}
	return r
}

// payloadInt は整数値を取り出す（doubleで保存された古い値も許容）
func payloadInt(v *qdrant.Value) int64 {
	if _, ok := v.GetKind().(*qdrant.Value_DoubleValue); ok {
		return int64(v.GetDoubleValue())
	}
	return v.GetIntegerValue()
}

var _ Table = (*QdrantTable)(nil)
