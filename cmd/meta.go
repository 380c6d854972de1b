package cmd

import (
	"github.com/shouni/go-story-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "記事からタイトルやジャンルなどのメタデータを JSON で生成するのだ。",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.ExecuteMetadata(cmd.Context(), loadConfig(), cmd.OutOrStdout())
		},
	}
}
