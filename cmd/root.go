package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shouni/go-story-kit/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// opts は各サブコマンドで共有する実行時オプションなのだ。
var opts config.GenerateOptions

var logLevel string

// NewRootCmd は、すべてのサブコマンドを束ねたルートコマンドを返すのだ。
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "story-kit",
		Short: "記事から選択式の挿絵付き物語を生成するのだ。",
		Long: `記事を元に、読者の選択に応じて1パネルずつ物語と挿絵を生成するのだ。
文章はストリーミングで表示され、挿絵の評価は次の画像バックエンド選択に反映されるのだ。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env があれば読み込む（なくても続行するのだ）
			_ = godotenv.Load()
			return setupLogger(logLevel)
		},
	}

	addAppFlags(rootCmd)
	rootCmd.AddCommand(
		newPlayCmd(),
		newMetaCmd(),
		newImageCmd(),
		newRateCmd(),
		newRatingsCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.ArticleFile, "article-file", "f", "", "記事ファイルのパス（'-'で標準入力、未指定なら同梱サンプルなのだ）。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "物語と画像の保存先ディレクトリなのだ。")

	// --- 物語の制約 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Genre, "genre", "g", "", "ジャンルの指定なのだ（例: mystery, fantasy）。")
	rootCmd.PersistentFlags().StringVar(&opts.Difficulty, "difficulty", "", "難易度なのだ（easy, normal, hard）。")
	rootCmd.PersistentFlags().IntVarP(&opts.MaxPanels, "max-panels", "p", 0, "物語のパネル数なのだ（0 なら MAX_PANELS か既定値）。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", "", "物語生成に使うモデル名なのだ（gpt-* なら OpenAI）。")
	rootCmd.PersistentFlags().StringVar(&opts.Style, "style", "", "挿絵の画風なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.AspectRatio, "aspect-ratio", "", "挿絵のアスペクト比なのだ（例: 16:9）。")
	rootCmd.PersistentFlags().DurationVar(&opts.NarrativeTimeout, "narrative-timeout", 0, "1パネルの文章生成に許す時間なのだ。")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "ログレベルなのだ（debug, info, warn, error）。")
}

// setupLogger は slog のデフォルトロガーを stderr に向けて設定するのだ。
func setupLogger(level string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("不正なログレベルなのだ: %s", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
	return nil
}

// loadConfig は環境変数の設定に CLI フラグを重ねるのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.Options = opts
	return cfg
}
