package cmd

import (
	"github.com/shouni/go-story-kit/internal/pipeline"
	"github.com/shouni/go-story-kit/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "物語セッションを HTTP/SSE で提供するサーバーを起動するのだ。",
		Long: `POST /api/stories でセッションを作り、GET /api/stories/{id}/next で
パネルを Server-Sent Events として受け取るのだ。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg, err := server.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}
			return pipeline.ExecuteServe(cmd.Context(), loadConfig(), srvCfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "待ち受けポートなのだ（STORY_SERVER_PORT より優先）。")
	return cmd
}
