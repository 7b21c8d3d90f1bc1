// Package bootstrap wires configuration, embedder, record table and the
// record service together for semstore.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/brbranch/semstore/internal/config"
	"github.com/brbranch/semstore/internal/embedder"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/observability"
	"github.com/brbranch/semstore/internal/service"
	"github.com/brbranch/semstore/internal/store"
)

// OpInitialize は初期化失敗時のErrorに入る操作名
const OpInitialize = "initialize"

// Notifier はクライアントへJSON-RPC通知を送る
type Notifier interface {
	Notify(n *model.Notification) error
}

// NotifierFunc は関数をNotifierとして使うためのアダプタ
type NotifierFunc func(n *model.Notification) error

func (f NotifierFunc) Notify(n *model.Notification) error {
	return f(n)
}

// Services は初期化されたサービス群を保持
// Recordsは常にGate経由なので、初期化完了前でも安全に呼び出せる
type Services struct {
	Records   service.RecordService
	Gate      *service.Gate
	Config    *model.Config
	Logger    *slog.Logger
	Namespace string
	TableDir  string
}

// opened は初期化で開いたリソース
type opened struct {
	svc   service.RecordService
	table store.Table
	emb   embedder.Embedder
}

func (o *opened) close() error {
	var errs []error
	if o.table != nil {
		errs = append(errs, o.table.Close())
	}
	if c, ok := o.emb.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// opener は埋め込みモデルとテーブルを開く関数（テストで差し替える）
type opener func(ctx context.Context, s *Services) (*opened, error)

// LoadConfig は.envと設定ファイル、環境変数から設定を読み込む
func LoadConfig(configPath string) (*config.Manager, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	mgr, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// NewLogger はログ設定からロガーを作成する
// stdoutはstdioトランスポートが使うので、通常wにはstderrを渡す
func NewLogger(cfg model.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == model.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newServices は設定からGate付きのServicesを作る（まだstarting状態）
func newServices(cfg *model.Config, logger *slog.Logger) (*Services, error) {
	tableDir, err := config.TableDir(cfg)
	if err != nil {
		return nil, err
	}
	gate := service.NewGate()
	observability.Ready.Set(0)
	return &Services{
		Records:   gate,
		Gate:      gate,
		Config:    cfg,
		Logger:    logger,
		Namespace: config.GenerateNamespace(cfg.Embedder.Provider, cfg.Embedder.Model, cfg.Embedder.Dim),
		TableDir:  tableDir,
	}, nil
}

// openAll は埋め込みモデルのロードとテーブルのオープンを行う
func openAll(ctx context.Context, s *Services) (*opened, error) {
	cfg := s.Config

	// 1. Embedder初期化
	rawEmb, err := embedder.NewEmbedder(&cfg.Embedder, config.GetOpenAIAPIKey(cfg), cfg.Paths.DataDir, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	o := &opened{emb: rawEmb}
	if err := embedder.Load(ctx, rawEmb); err != nil {
		_ = o.close()
		return nil, fmt.Errorf("failed to load embedder: %w", err)
	}

	// 2. Table初期化
	opts := store.Options{
		Type:      cfg.Store.Type,
		Dir:       s.TableDir,
		Dimension: cfg.Embedder.Dim,
		Logger:    s.Logger,
	}
	if cfg.Store.URL != nil {
		opts.URL = *cfg.Store.URL
	}
	table, err := store.Open(ctx, opts)
	if err != nil {
		_ = o.close()
		return nil, err
	}
	o.table = table

	loc, err := config.Location(cfg)
	if err != nil {
		_ = o.close()
		return nil, err
	}

	// 3. Service初期化
	svc := service.NewRecordService(
		service.InstrumentEmbedder(rawEmb),
		table,
		service.WithLogger(s.Logger),
		service.WithLocation(loc),
		service.WithSearchLimit(cfg.Search.DefaultLimit),
		service.WithListLimit(cfg.List.DefaultLimit),
	)
	o.svc = service.Instrument(svc)
	return o, nil
}

// Initialize は設定を読み込み、必要なサービスを同期的に初期化する
// ワンショットのCLIコマンドで使う
func Initialize(ctx context.Context, configPath string) (*Services, func(), error) {
	mgr, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := mgr.GetConfig()
	return InitializeConfig(ctx, cfg, NewLogger(cfg.Log, os.Stderr))
}

// InitializeConfig は読み込み済みの設定で同期的に初期化する
func InitializeConfig(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*Services, func(), error) {
	return initialize(ctx, cfg, logger, openAll)
}

func initialize(ctx context.Context, cfg *model.Config, logger *slog.Logger, open opener) (*Services, func(), error) {
	s, err := newServices(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	o, err := open(ctx, s)
	if err != nil {
		return nil, nil, &service.Error{Kind: service.KindInitialization, Op: OpInitialize, Err: err}
	}
	s.Gate.Ready(o.svc)
	observability.Ready.Set(1)

	cleanup := func() {
		if err := o.close(); err != nil {
			logger.Warn("failed to close resources", "error", err)
		}
	}
	return s, cleanup, nil
}

// Start は設定を読み込んだ後、埋め込みモデルとテーブルの初期化をバックグラウンドで開始する
//
// 戻り値のServicesは直ちに使えるが、初期化完了まではErrNotReadyを返す。
// 初期化の結果はnotifierに records.ready または records.initFailed として一度だけ通知される。
// 失敗は終端で、再試行はしない。cleanupは初期化の完了を待ってからリソースを閉じる
func Start(ctx context.Context, configPath string, notifier Notifier) (*Services, func(), error) {
	mgr, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := mgr.GetConfig()
	return StartConfig(ctx, cfg, NewLogger(cfg.Log, os.Stderr), notifier)
}

// StartConfig は読み込み済みの設定でバックグラウンド初期化を開始する
func StartConfig(ctx context.Context, cfg *model.Config, logger *slog.Logger, notifier Notifier) (*Services, func(), error) {
	return start(ctx, cfg, logger, notifier, openAll)
}

func start(ctx context.Context, cfg *model.Config, logger *slog.Logger, notifier Notifier, open opener) (*Services, func(), error) {
	s, err := newServices(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var resources *opened

	logger.Info("initializing record store",
		"provider", cfg.Embedder.Provider,
		"model", cfg.Embedder.Model,
		"store", cfg.Store.Type,
		"tableDir", s.TableDir,
	)

	go func() {
		defer close(done)

		o, err := open(ctx, s)
		if err != nil {
			s.Gate.Fail(err)
			logger.Error("record store initialization failed", "error", err)
			notify(logger, notifier, model.NewInitFailedNotification(err.Error()))
			return
		}

		resources = o
		s.Gate.Ready(o.svc)
		observability.Ready.Set(1)
		logger.Info("record store ready", "namespace", s.Namespace)
		notify(logger, notifier, model.NewReadyNotification())
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancel()
			<-done
			if resources != nil {
				if err := resources.close(); err != nil {
					logger.Warn("failed to close resources", "error", err)
				}
			}
		})
	}
	return s, cleanup, nil
}

func notify(logger *slog.Logger, notifier Notifier, n *model.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(n); err != nil {
		logger.Warn("failed to send notification", "method", n.Method, "error", err)
	}
}
