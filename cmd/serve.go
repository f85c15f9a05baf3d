package cmd

import (
	"github.com/spf13/cobra"

	"media-pipeline-service/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP/gRPC 服务与流水线 worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
