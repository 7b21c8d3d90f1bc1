// Package http implements the HTTP transport: JSON-RPC over POST /rpc plus
// health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/observability"
	"github.com/brbranch/semstore/internal/service"
)

const (
	// DefaultAddr は既定の待ち受けアドレス
	DefaultAddr = "127.0.0.1:8765"
	// MaxBodySize はリクエストボディの上限（1MB）
	MaxBodySize = 1024 * 1024
	// DefaultReadHeaderTimeout はヘッダー読み取りのタイムアウト
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultShutdownTimeout はgraceful shutdownの待ち時間
	DefaultShutdownTimeout = 10 * time.Second
)

// Handler はJSON-RPCリクエストを処理する
// 通知（応答不要）の場合はnilを返す
type Handler interface {
	Handle(ctx context.Context, requestBytes []byte) []byte
}

// StateReporter は初期化状態を返す（service.Gate）
type StateReporter interface {
	State() (service.State, error)
}

// Config はHTTPサーバー設定
type Config struct {
	Addr              string   // listen address (例: "127.0.0.1:8765")
	CORSOrigins       []string // 許可するオリジンリスト、空ならCORS無効
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server はHTTP JSON-RPCサーバー
type Server struct {
	handler Handler
	state   StateReporter
	config  Config
	logger  *slog.Logger
	router  chi.Router
	srv     *http.Server
}

// Option はサーバーオプション
type Option func(*Server)

// WithState は /healthz が参照する初期化状態を設定する
// 未設定の場合 /healthz は常に200
func WithState(state StateReporter) Option {
	return func(s *Server) {
		s.state = state
	}
}

// WithLogger はロガーを設定
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New は新しいServerを生成
func New(handler Handler, config Config, opts ...Option) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		handler: handler,
		config:  config,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observability.MetricsMiddleware)
	if len(config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Post("/rpc", s.handleRPC)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r

	s.srv = &http.Server{
		Addr:              config.Addr,
		Handler:           r,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return s
}

// Handler はルーターを返す（テスト用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はサーバーを起動し、contextがキャンセルされるまで実行
// キャンセル後はgraceful shutdownしてnilを返す
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnで待ち受ける
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http transport listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// handleRPC はJSON-RPCリクエストを処理
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	// Content-Type確認
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		http.Error(w, "Unsupported Media Type", http.StatusUnsupportedMediaType)
		return
	}

	// リクエストボディ読み取り（上限付き）
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	respBytes := s.handler.Handle(r.Context(), body)
	if respBytes == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(respBytes); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// handleHealth は初期化状態を返す。ready以外は503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res := model.StatusResult{State: string(service.StateReady)}
	if s.state != nil {
		state, err := s.state.State()
		res.State = string(state)
		if err != nil {
			res.Error = err.Error()
		}
	}

	status := http.StatusOK
	if res.State != string(service.StateReady) {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}
