package cmd

import (
	"github.com/shouni/go-story-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// newPlayCmd は、物語を対話的に遊ぶためのサブコマンドなのだ。
func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "記事から物語を生成して、選択肢を選びながら進めるのだ。",
		Long: `記事を読み込み、メタデータの生成から最終パネルまでを対話的に進めるのだ。
完結した物語は Markdown と画像として --output-dir に保存されるのだ。`,
		Example: "  story-kit play -f article.md --genre mystery -p 5\n  story-kit play --auto",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			return pipeline.ExecutePlay(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "常に最初の選択肢を選んで最後まで進めるのだ。")
	cmd.Flags().BoolVar(&opts.SkipMetadata, "skip-metadata", false, "メタデータ生成を省略するのだ。")
	return cmd
}
