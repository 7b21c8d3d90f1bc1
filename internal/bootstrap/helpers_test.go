package bootstrap

import (
	"context"

	"github.com/brbranch/semstore/internal/store"
)

// fakeEmbedder は常に同じ単位ベクトルを返す
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (fakeEmbedder) GetDimension() int { return 4 }

func newMemoryTable() store.Table {
	return store.NewMemoryTable(4)
}
