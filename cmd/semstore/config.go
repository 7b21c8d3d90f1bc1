package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brbranch/semstore/internal/config"
	"github.com/brbranch/semstore/internal/model"
)

// openConfigFile は環境変数の上書きを適用せずに設定ファイルを読み込む
// 書き戻す内容に環境変数の値が混ざらないようにするため
func openConfigFile(root *rootOptions) (*config.Manager, error) {
	path := root.ConfigPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
	}
	cmd.AddCommand(newConfigPathCmd(root), newConfigSetEmbedderCmd(root))
	return cmd
}

func newConfigPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := openConfigFile(root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), mgr.GetConfigPath())
			return err
		},
	}
}

func newConfigSetEmbedderCmd(root *rootOptions) *cobra.Command {
	var (
		emb     model.EmbedderConfig
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "set-embedder",
		Short: "Change the embedding model and write the config file",
		Long: "Change the embedding model and write the config file.\n" +
			"Records embedded with a different provider, model or dim live in a separate table and are not migrated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if emb.Dim < 0 {
				return fmt.Errorf("invalid dim: %d", emb.Dim)
			}
			if cmd.Flags().Changed("base-url") {
				emb.BaseURL = &baseURL
			}
			if emb == (model.EmbedderConfig{}) {
				return errors.New("nothing to change (use --provider, --model, --dim or --base-url)")
			}

			mgr, err := openConfigFile(root)
			if err != nil {
				return err
			}
			if err := mgr.UpdateEmbedder(&emb); err != nil {
				return err
			}
			cfg := mgr.GetConfig()
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := mgr.Save(); err != nil {
				return err
			}

			ns := config.GenerateNamespace(cfg.Embedder.Provider, cfg.Embedder.Model, cfg.Embedder.Dim)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "embedder set to %s (%s)\n", ns, mgr.GetConfigPath())
			return err
		},
	}
	cmd.Flags().StringVar(&emb.Provider, "provider", "", "embedding provider: local, openai, ollama")
	cmd.Flags().StringVar(&emb.Model, "model", "", "embedding model name")
	cmd.Flags().IntVar(&emb.Dim, "dim", 0, "embedding dimension")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "provider base URL")
	return cmd
}
