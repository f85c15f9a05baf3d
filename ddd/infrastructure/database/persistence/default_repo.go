package persistence

import (
	"strings"
	"sync"

	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
)

var (
	jobRepoOnce      sync.Once
	singletonJobRepo repo.JobRepository
)

// DefaultJobRepository 按 database.driver 选择实现，memory 时不连接数据库
func DefaultJobRepository() repo.JobRepository {
	assert.NotCircular()
	jobRepoOnce.Do(func() {
		cfg := config.GetGlobalConfig()
		if cfg != nil && strings.EqualFold(cfg.Database.Driver, "memory") {
			singletonJobRepo = NewMemoryJobRepository()
			return
		}
		singletonJobRepo = NewJobRepository()
	})
	assert.NotNil(singletonJobRepo)
	return singletonJobRepo
}
