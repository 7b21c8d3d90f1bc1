package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brbranch/semstore/internal/bootstrap"
	"github.com/brbranch/semstore/internal/model"
	"github.com/brbranch/semstore/internal/service"
)

// 出力形式
const (
	formatText = "text"
	formatJSON = "json"
)

// previewLen はテキスト出力で1件あたりに表示する文字数（rune）
const previewLen = 60

// searchOptions はsearchコマンドのフラグ
type searchOptions struct {
	From     string
	To       string
	TopK     int
	Format   string
	UseStdin bool
}

// withRecords は設定を読み込み、ストアを同期的に開いてfnを実行する
func withRecords(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, records service.RecordService) error) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, cleanup, err := bootstrap.InitializeConfig(ctx, cfg, bootstrap.NewLogger(cfg.Log, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, services.Records)
}

func validateFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("invalid format: %s (must be text or json)", format)
	}
	return nil
}

func newAddCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Store a new record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return withRecords(cmd, root, func(ctx context.Context, records service.RecordService) error {
				item, err := records.Add(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return writeItem(cmd.OutOrStdout(), format, item)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text|json")
	return cmd
}

func newUpdateCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "update ID TEXT...",
		Short: "Replace the text of a record (creates it when the id is unknown)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return withRecords(cmd, root, func(ctx context.Context, records service.RecordService) error {
				item, err := records.Update(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return writeItem(cmd.OutOrStdout(), format, item)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text|json")
	return cmd
}

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, root, func(ctx context.Context, records service.RecordService) error {
				if err := records.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newListCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative")
			}
			return withRecords(cmd, root, func(ctx context.Context, records service.RecordService) error {
				items, err := records.List(ctx, limit)
				if err != nil {
					return err
				}
				return writeItems(cmd.OutOrStdout(), format, items)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of records (default from config, at most 500)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text|json")
	return cmd
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Find records similar to a query",
		Example: `  semstore search "weekend plans"
  semstore search --from 2024-01-01 --to 2024-01-31 -k 5 "meeting notes"
  echo "query" | semstore search --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := resolveQuery(cmd.InOrStdin(), opts, args)
			if err != nil {
				return err
			}
			if err := validateFormat(opts.Format); err != nil {
				return err
			}
			if opts.TopK < 0 {
				return fmt.Errorf("top-k must not be negative")
			}
			if err := validateDateRange(opts.From, opts.To); err != nil {
				return err
			}
			return withRecords(cmd, root, func(ctx context.Context, records service.RecordService) error {
				results, err := records.Search(ctx, &service.SearchRequest{
					Query:     query,
					StartDate: opts.From,
					EndDate:   opts.To,
					Limit:     opts.TopK,
				})
				if err != nil {
					return err
				}
				return writeResults(cmd.OutOrStdout(), opts.Format, results)
			})
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "inclusive end date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&opts.TopK, "top-k", "k", 0, "number of results (default from config, at most 500)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", formatText, "output format: text|json")
	cmd.Flags().BoolVar(&opts.UseStdin, "stdin", false, "read query from stdin")
	return cmd
}

// validateDateRange は --from が --to より後の指定を拒否する
// 逆転した範囲はストアでは空の結果になるだけなので、ここでエラーにする。
// 形式の誤りはストア側の検証に任せる
func validateDateRange(from, to string) error {
	if from == "" || to == "" {
		return nil
	}
	start, err := time.Parse(service.DateLayout, from)
	if err != nil {
		return nil
	}
	end, err := time.Parse(service.DateLayout, to)
	if err != nil {
		return nil
	}
	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", service.ErrInvalidDateRange, from, to)
	}
	return nil
}

// resolveQuery は引数、または --stdin 指定時はrの1行目からクエリを取り出す
func resolveQuery(r io.Reader, opts *searchOptions, args []string) (string, error) {
	if !opts.UseStdin {
		query := strings.Join(args, " ")
		if query == "" {
			return "", fmt.Errorf("query is required (or use --stdin)")
		}
		return query, nil
	}
	if len(args) > 0 {
		return "", fmt.Errorf("query arguments cannot be combined with --stdin")
	}

	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read query from stdin: %w", err)
	}
	return "", fmt.Errorf("no input received")
}

func writeItem(w io.Writer, format string, item *model.Item) error {
	if format == formatJSON {
		return writeJSON(w, item)
	}
	_, err := fmt.Fprintln(w, item.ID)
	return err
}

func writeItems(w io.Writer, format string, items []model.Item) error {
	if items == nil {
		items = []model.Item{}
	}
	if format == formatJSON {
		return writeJSON(w, map[string]any{"items": items})
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No records.")
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", item.ID, formatTimestamp(item.Timestamp), preview(item.Text)); err != nil {
			return err
		}
	}
	return nil
}

func writeResults(w io.Writer, format string, results []model.ScoredItem) error {
	if results == nil {
		results = []model.ScoredItem{}
	}
	if format == formatJSON {
		return writeJSON(w, map[string]any{"results": results})
	}

	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	for i, r := range results {
		if _, err := fmt.Fprintf(w, "[%d] %s (similarity: %.3f, %s)\n    %s\n\n",
			i+1, r.ID, r.Similarity, formatTimestamp(r.Timestamp), preview(r.Text)); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

// preview はテキストを1行にまとめてpreviewLen文字に切り詰める
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + " ..."
}
