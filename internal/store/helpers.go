package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/brbranch/semstore/internal/model"
)

// L2Distance はユークリッド距離を計算する（次元が異なる場合は+Inf）
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SimilarityFromDistance は正規化ベクトル間のL2距離を0-1の類似度に変換する
// d=0で1、d=2（正反対）で0
func SimilarityFromDistance(d float64) float64 {
	s := 1.0 - d/2.0
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// validateRecords はAppend前の共通チェック
func validateRecords(records []*model.Record, dim int) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %s has %d, table expects %d", ErrDimensionMismatch, r.ID, len(r.Vector), dim)
		}
	}
	return nil
}

// checkQuery は検索ベクトルの次元をチェックする
func checkQuery(query []float32, dim int) error {
	if len(query) != dim {
		return fmt.Errorf("%w: query has %d, table expects %d", ErrDimensionMismatch, len(query), dim)
	}
	return nil
}

// rankNeighbors は距離昇順（同距離はid昇順）に並べてlimit件に切り詰める
func rankNeighbors(neighbors []Neighbor, limit int) []Neighbor {
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Record.ID < neighbors[j].Record.ID
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

// encodeEmbedding はfloat32配列をバイト配列に変換する
func encodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding はバイト配列をfloat32配列に変換する
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
