// Command semstore はローカルのセマンティックレコードストア
package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/brbranch/semstore/internal/bootstrap"
	"github.com/brbranch/semstore/internal/model"
)

// ビルド時変数（-ldflags で変更可能）
var (
	defaultTransport = ""
	version          = "dev"
	commit           = "unknown"
	date             = "unknown"
)

// rootOptions は全サブコマンド共通のフラグ
type rootOptions struct {
	ConfigPath string
	LogLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "semstore",
		Short:         "Local semantic record store",
		Long:          "semstore stores short texts with their embeddings and finds them again by meaning, optionally within a date range.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default ~/.semstore/config.json)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newAddCmd(opts),
		newListCmd(opts),
		newSearchCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return root
}

// loadConfig は設定を読み込み、フラグの上書きを反映する
func loadConfig(opts *rootOptions) (*model.Config, error) {
	mgr, err := bootstrap.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg := mgr.GetConfig()
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}
