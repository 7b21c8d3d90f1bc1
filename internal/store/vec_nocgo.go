//go:build !cgo

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brbranch/semstore/internal/model"
)

// NewVecTable はcgo無しのビルドでは常に失敗する
func NewVecTable(_ context.Context, _ string, _ int, _ *slog.Logger) (Table, error) {
	return nil, fmt.Errorf("%w: %s", ErrCGORequired, model.StoreTypeSQLiteVec)
}
