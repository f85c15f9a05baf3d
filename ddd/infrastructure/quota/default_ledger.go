package quota

import (
	"strings"
	"sync"

	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/infrastructure/database/dao"
	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

var (
	ledgerOnce      sync.Once
	singletonLedger repo.QuotaLedger
)

// DefaultLedger 按 quota.store 选择 redis、sql 或 memory
func DefaultLedger() repo.QuotaLedger {
	assert.NotCircular()
	ledgerOnce.Do(func() {
		cfg := config.GetGlobalConfig()
		store := "memory"
		if cfg != nil {
			store = strings.ToLower(cfg.Quota.Store)
		}
		switch store {
		case "redis":
			singletonLedger = NewRedisLedger(resource.DefaultRedisResource().Wrapped(), cfg.Quota.Retention)
		case "sql", "mysql", "postgres":
			singletonLedger = NewSQLLedger(dao.NewQuotaUsageDAO())
		default:
			singletonLedger = NewMemoryLedger()
		}
		logger.Infof("Quota ledger ready store=%s", store)
	})
	assert.NotNil(singletonLedger)
	return singletonLedger
}
