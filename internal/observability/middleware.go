package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware はリクエスト数と所要時間を記録するミドルウェア
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// "2xx" "4xx" "5xx" のようなステータス区分
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// statusWriter はステータスコードを記録するhttp.ResponseWriter
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader はステータスコードを記録して元のwriterに渡す
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write は書き込みを元のwriterに渡し、ステータスを書き込み済みにする
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
