package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"media-pipeline-service/app"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "media-pipeline",
	Short: "Media processing job service: fetch, transcode and text transforms with daily quotas.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(configPath)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: CONFIG_PATH or configs/config.<CONFIG_ENV>.yaml)")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
