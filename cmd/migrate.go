package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"media-pipeline-service/app"
	"media-pipeline-service/internal/resource"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "同步数据库表结构",
	Long:  `根据当前配置连接数据库，自动迁移作业表与配额表。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logService, err := app.Bootstrap(configPath)
		if err != nil {
			return err
		}
		defer logService.Close()

		if strings.EqualFold(cfg.Database.Driver, "memory") {
			fmt.Println("database.driver is memory, nothing to migrate")
			return nil
		}
		cfg.Database.AutoMigrate = true
		db := resource.DefaultDatabaseResource()
		db.MustOpen()
		defer db.Close()
		fmt.Printf("migrated %s database %s\n", cfg.Database.Driver, cfg.Database.Database)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
