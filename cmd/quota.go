package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"media-pipeline-service/app"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/infrastructure/database/dao"
	"media-pipeline-service/ddd/infrastructure/quota"
	"media-pipeline-service/internal/resource"
)

var keepDays int

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "配额账本维护",
}

var quotaPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "清理过期的 SQL 配额记录",
	Long:  `删除 --keep-days 天之前的 quota_usages 记录。Redis 账本依靠 TTL 过期，无需清理。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keepDays < 1 {
			return fmt.Errorf("--keep-days must be at least 1")
		}
		cfg, logService, err := app.Bootstrap(configPath)
		if err != nil {
			return err
		}
		defer logService.Close()

		switch strings.ToLower(cfg.Quota.Store) {
		case "sql", "mysql", "postgres":
		default:
			fmt.Printf("quota.store is %s, nothing to purge\n", cfg.Quota.Store)
			return nil
		}

		policy, err := service.NewQuotaPolicy(cfg.Quota)
		if err != nil {
			return err
		}
		cutoff := time.Now().In(policy.Location).AddDate(0, 0, -keepDays).Format(service.DayLayout)

		db := resource.DefaultDatabaseResource()
		db.MustOpen()
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := quota.NewSQLLedger(dao.NewQuotaUsageDAO()).Purge(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d quota rows before %s\n", removed, cutoff)
		return nil
	},
}

func init() {
	quotaPurgeCmd.Flags().IntVar(&keepDays, "keep-days", 30, "保留最近多少天的记录")
	quotaCmd.AddCommand(quotaPurgeCmd)
	rootCmd.AddCommand(quotaCmd)
}
