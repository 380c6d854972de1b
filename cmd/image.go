package cmd

import (
	"fmt"
	"strings"

	"github.com/shouni/go-story-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// newImageCmd は、物語とは独立に挿絵を1枚だけ生成するサブコマンドなのだ。
// バックエンドの比較や画風の調整に使うのだ。
func newImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "image [narrative]",
		Short:   "文章から挿絵を1枚生成して保存するのだ。",
		Example: `  story-kit image "A lighthouse goes dark at dawn." --style "watercolor"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pipeline.ExecuteImage(cmd.Context(), loadConfig(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
