// Package observability provides Prometheus metrics and HTTP middleware for semstore.
package observability

import "github.com/prometheus/client_golang/prometheus"

// EmbedBuckets は埋め込みとストアのレイテンシ用バケット（1ms〜10s）
var EmbedBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

var (
	// OperationsTotal は操作名と結果ごとの操作回数
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semstore_operations_total",
			Help: "Record operations",
		},
		[]string{"op", "outcome"},
	)

	// OperationDuration は操作の所要時間（秒）
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semstore_operation_duration_seconds",
			Help:    "Record operation duration",
			Buckets: EmbedBuckets,
		},
		[]string{"op"},
	)

	// EmbedDuration は結果ごとの埋め込みレイテンシ（秒）
	EmbedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semstore_embed_duration_seconds",
			Help:    "Embedding latency",
			Buckets: EmbedBuckets,
		},
		[]string{"outcome"},
	)

	// RequestsTotal はメソッドとステータス区分ごとのHTTPリクエスト数
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semstore_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration はメソッドごとのHTTPリクエスト所要時間（秒）
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semstore_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: EmbedBuckets,
		},
		[]string{"method"},
	)

	// Ready は初期化完了後に1、それまでは0
	Ready = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "semstore_ready",
			Help: "Store readiness",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OperationsTotal,
		OperationDuration,
		EmbedDuration,
		RequestsTotal,
		RequestDuration,
		Ready,
	)
}
