package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/store"
)

const testDim = 3

// conceptEmbedder はキーワードから決定的にベクトルを作るテスト用Embedder
// 次元: [乳製品, パン, その他]
type conceptEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

var concepts = []struct {
	dim   int
	words []string
}{
	{0, []string{"milk", "dairy", "cheese", "yogurt", "butter"}},
	{1, []string{"bread", "bake", "toast", "flour"}},
}

func (e *conceptEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	vec := []float32{0, 0, 0.2}
	lower := strings.ToLower(text)
	for _, c := range concepts {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				vec[c.dim] += 1
			}
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (e *conceptEmbedder) GetDimension() int {
	return testDim
}

func (e *conceptEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// stepClock は呼ばれるたびに1msずつ進む時計
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(time.Millisecond)
	return now
}

// set は次に返す時刻を設定する
func (c *stepClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// failingTable は指定した操作を失敗させるTable
type failingTable struct {
	store.Table
	failAppend bool
	failDelete bool
	failScan   bool
	failSearch bool
	failGet    bool

	searchLimit int // 最後にSearchNearestへ渡されたlimit
}

var errTableBroken = errors.New("table broken")

func (f *failingTable) Append(ctx context.Context, records []*model.Record) error {
	if f.failAppend {
		return errTableBroken
	}
	return f.Table.Append(ctx, records)
}

func (f *failingTable) DeleteWhere(ctx context.Context, pred store.Predicate) error {
	if f.failDelete {
		return errTableBroken
	}
	return f.Table.DeleteWhere(ctx, pred)
}

func (f *failingTable) ScanAll(ctx context.Context, limit int) ([]*model.Record, error) {
	if f.failScan {
		return nil, errTableBroken
	}
	return f.Table.ScanAll(ctx, limit)
}

func (f *failingTable) SearchNearest(ctx context.Context, query []float32, limit int, filter *store.Predicate) ([]store.Neighbor, error) {
	f.searchLimit = limit
	if f.failSearch {
		return nil, errTableBroken
	}
	return f.Table.SearchNearest(ctx, query, limit, filter)
}

func (f *failingTable) Get(ctx context.Context, id string) (*model.Record, error) {
	if f.failGet {
		return nil, errTableBroken
	}
	return f.Table.Get(ctx, id)
}

type testEnv struct {
	svc   RecordService
	emb   *conceptEmbedder
	table *store.MemoryTable
	clock *stepClock
}

func newTestEnv(opts ...Option) *testEnv {
	emb := &conceptEmbedder{}
	table := store.NewMemoryTable(testDim)
	clock := newStepClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	all := append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	return &testEnv{
		svc:   NewRecordService(emb, table, all...),
		emb:   emb,
		table: table,
		clock: clock,
	}
}
