package service

import (
	"context"
	"sync"

	"github.com/brbranch/semstore/internal/model"
)

// State は初期化の状態
type State string

const (
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Gate は初期化完了までの操作を止めるRecordService
//
// Ready前はErrNotReady、Fail後は以後ずっとErrInitializationを返す。
// ReadyとFailはどちらか一方が一度だけ有効になる。
type Gate struct {
	mu    sync.RWMutex
	state State
	svc   RecordService
	err   error
}

// NewGate はstarting状態のGateを作成
func NewGate() *Gate {
	return &Gate{state: StateStarting}
}

// Ready は初期化完了を通知する。既に確定済みならfalse
func (g *Gate) Ready(svc RecordService) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateStarting {
		return false
	}
	g.state = StateReady
	g.svc = svc
	return true
}

// Fail は初期化失敗を通知する。既に確定済みならfalse
func (g *Gate) Fail(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateStarting {
		return false
	}
	g.state = StateFailed
	g.err = err
	return true
}

// State は現在の状態と失敗時の原因を返す
func (g *Gate) State() (State, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.err
}

func (g *Gate) current(op string) (RecordService, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch g.state {
	case StateReady:
		return g.svc, nil
	case StateFailed:
		return nil, &Error{Kind: KindInitialization, Op: op, Err: g.err}
	default:
		return nil, &Error{Kind: KindNotReady, Op: op}
	}
}

// Add は準備完了後のサービスに委譲する
func (g *Gate) Add(ctx context.Context, text string) (*model.Item, error) {
	svc, err := g.current(OpAdd)
	if err != nil {
		return nil, err
	}
	return svc.Add(ctx, text)
}

// List は準備完了後のサービスに委譲する
func (g *Gate) List(ctx context.Context, limit int) ([]model.Item, error) {
	svc, err := g.current(OpList)
	if err != nil {
		return nil, err
	}
	return svc.List(ctx, limit)
}

// Search は準備完了後のサービスに委譲する
func (g *Gate) Search(ctx context.Context, req *SearchRequest) ([]model.ScoredItem, error) {
	svc, err := g.current(OpSearch)
	if err != nil {
		return nil, err
	}
	return svc.Search(ctx, req)
}

// Update は準備完了後のサービスに委譲する
func (g *Gate) Update(ctx context.Context, id, text string) (*model.Item, error) {
	svc, err := g.current(OpUpdate)
	if err != nil {
		return nil, err
	}
	return svc.Update(ctx, id, text)
}

// Delete は準備完了後のサービスに委譲する
func (g *Gate) Delete(ctx context.Context, id string) error {
	svc, err := g.current(OpDelete)
	if err != nil {
		return err
	}
	return svc.Delete(ctx, id)
}

var _ RecordService = (*Gate)(nil)
