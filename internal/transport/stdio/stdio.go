// Package stdio implements the line-delimited JSON-RPC transport over
// stdin/stdout.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/brbranch/semstore/internal/model"
)

// MaxBufferSize は1行の最大サイズ（1MB）
const MaxBufferSize = 1024 * 1024

// Handler はJSON-RPCリクエストを処理するインターフェース
// 通知（応答不要）の場合はnilを返す
type Handler interface {
	Handle(ctx context.Context, requestBytes []byte) []byte
}

// Server はstdio JSON-RPCサーバー
// 応答と通知の書き込みはmuで直列化する
type Server struct {
	handler Handler
	reader  io.Reader
	writer  io.Writer
	logger  *slog.Logger

	mu sync.Mutex
}

// Option はサーバーオプション
type Option func(*Server)

// WithReader はreaderを設定（テスト用）
func WithReader(r io.Reader) Option {
	return func(s *Server) {
		s.reader = r
	}
}

// WithWriter はwriterを設定（テスト用）
func WithWriter(w io.Writer) Option {
	return func(s *Server) {
		s.writer = w
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
func New(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		reader:  os.Stdin,
		writer:  os.Stdout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run はサーバーを起動し、EOFまたはcontextがキャンセルされるまで実行
// EOFはnil、キャンセルはctx.Err()を返す
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}

			response := s.handler.Handle(ctx, line)
			if response == nil {
				continue
			}
			if err := s.writeLine(response); err != nil {
				return err
			}
		}
	}
}

// readLines は1行ずつ読み取り、空行を除いてlinesに送る
// 終了時はreadErrに結果を入れてからlinesを閉じる
func (s *Server) readLines(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 64*1024), MaxBufferSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Scannerのバッファは次のScanで上書きされる
		buf := make([]byte, len(line))
		copy(buf, line)

		select {
		case lines <- buf:
		case <-ctx.Done():
			readErr <- ctx.Err()
			return
		}
	}

	if err := scanner.Err(); err != nil {
		readErr <- fmt.Errorf("read request: %w", err)
		return
	}
	readErr <- nil
}

// Notify はJSON-RPC通知を1行で書き込む
func (s *Server) Notify(n *model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.writeLine(b); err != nil {
		return err
	}
	s.logger.Debug("notification sent", "method", n.Method)
	return nil
}

// writeLine はmsgと改行を一度のWriteで書き込む
func (s *Server) writeLine(msg []byte) error {
	line := make([]byte, 0, len(msg)+1)
	line = append(line, msg...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
