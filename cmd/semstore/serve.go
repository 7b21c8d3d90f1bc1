package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brbranch/semstore/internal/bootstrap"
	"github.com/brbranch/semstore/internal/config"
	"github.com/brbranch/semstore/internal/jsonrpc"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/transport/http"
	"github.com/brbranch/semstore/internal/transport/stdio"
)

// serveOptions はserveコマンドのフラグ
type serveOptions struct {
	Transport string
	Host      string
	Port      int
}

// handlerFunc は関数をstdio.Handlerとして使うためのアダプタ
type handlerFunc func(ctx context.Context, requestBytes []byte) []byte

func (f handlerFunc) Handle(ctx context.Context, requestBytes []byte) []byte {
	return f(ctx, requestBytes)
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record store over JSON-RPC (stdio or HTTP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			transport, addr, err := resolveServe(cmd, cfg, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			switch transport {
			case model.TransportHTTP:
				return serveHTTP(ctx, cfg, addr)
			default:
				return serveStdio(ctx, cmd, cfg)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.Transport, "transport", "t", defaultTransport, "transport type: stdio, http (default from config)")
	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "HTTP host")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 8765, "HTTP port")

	return cmd
}

// resolveServe はフラグと設定からtransportと待ち受けアドレスを決める
// フラグが明示された場合のみ設定ファイルの値を上書きする
func resolveServe(cmd *cobra.Command, cfg *model.Config, opts *serveOptions) (string, string, error) {
	transport := cfg.TransportDefaults.DefaultTransport
	if opts.Transport != "" {
		transport = opts.Transport
	}
	if transport == "" {
		transport = model.TransportStdio
	}
	if transport != model.TransportStdio && transport != model.TransportHTTP {
		return "", "", fmt.Errorf("invalid transport: %s (must be stdio or http)", transport)
	}

	if opts.Port < 1 || opts.Port > 65535 {
		return "", "", fmt.Errorf("invalid port: %d (must be 1-65535)", opts.Port)
	}

	addr := cfg.TransportDefaults.HTTPAddr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	if cmd.Flags().Changed("host") || cmd.Flags().Changed("port") {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return "", "", fmt.Errorf("invalid httpAddr %q: %w", addr, err)
		}
		if cmd.Flags().Changed("host") {
			host = opts.Host
		}
		if cmd.Flags().Changed("port") {
			port = strconv.Itoa(opts.Port)
		}
		addr = net.JoinHostPort(host, port)
	}

	return transport, addr, nil
}

// serveStdio は標準入出力でJSON-RPCを処理する
// 初期化の結果は同じ出力にrecords.ready / records.initFailedとして通知する
func serveStdio(ctx context.Context, cmd *cobra.Command, cfg *model.Config) error {
	logger := bootstrap.NewLogger(cfg.Log, os.Stderr)

	var handler *jsonrpc.Handler
	server := stdio.New(
		handlerFunc(func(ctx context.Context, requestBytes []byte) []byte {
			return handler.Handle(ctx, requestBytes)
		}),
		stdio.WithReader(cmd.InOrStdin()),
		stdio.WithWriter(cmd.OutOrStdout()),
		stdio.WithLogger(logger),
	)

	services, cleanup, err := bootstrap.StartConfig(ctx, cfg, logger, server)
	if err != nil {
		return err
	}
	defer cleanup()

	handler = jsonrpc.New(services.Records, services.Gate, jsonrpc.WithLogger(logger))
	return server.Run(ctx)
}

// serveHTTP はPOST /rpcでJSON-RPCを処理する
// HTTPには通知を送る経路がないので、初期化状態は/healthzとrecords.statusで確認する
func serveHTTP(ctx context.Context, cfg *model.Config, addr string) error {
	logger := bootstrap.NewLogger(cfg.Log, os.Stderr)

	services, cleanup, err := bootstrap.StartConfig(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := jsonrpc.New(services.Records, services.Gate, jsonrpc.WithLogger(logger))
	server := http.New(handler, http.Config{
		Addr:        addr,
		CORSOrigins: cfg.TransportDefaults.CORSOrigins,
	}, http.WithState(services.Gate), http.WithLogger(logger))
	return server.Run(ctx)
}
