package cmd

import (
	"fmt"
	"strconv"

	"github.com/shouni/go-story-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rate <backend> <1-5>",
		Short:   "画像バックエンドを評価するのだ。評価は次回以降の選択確率に反映されるのだ。",
		Example: "  story-kit rate imagen 4",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("評価は数字で指定してほしいのだ: %s", args[1])
			}
			return pipeline.ExecuteRate(cmd.Context(), loadConfig(), args[0], rating, cmd.OutOrStdout())
		},
	}
}

func newRatingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ratings",
		Short: "画像バックエンドごとの評価を一覧表示するのだ。",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.ExecuteRatings(cmd.Context(), loadConfig(), cmd.OutOrStdout())
		},
	}
}
