package app

import (
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/event"
	"media-pipeline-service/ddd/infrastructure/executor"
	"media-pipeline-service/ddd/infrastructure/identity"
	"media-pipeline-service/ddd/infrastructure/progress"
	"media-pipeline-service/ddd/infrastructure/quota"
	"media-pipeline-service/ddd/infrastructure/storage"
	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

var (
	quotaServiceOnce      sync.Once
	singletonQuotaService service.QuotaService

	formatServiceOnce      sync.Once
	singletonFormatService service.FormatService

	artifactServiceOnce      sync.Once
	singletonArtifactService service.ArtifactService

	registryOnce      sync.Once
	singletonRegistry *executor.Registry

	pipelineServiceOnce      sync.Once
	singletonPipelineService service.PipelineService

	verifierOnce      sync.Once
	singletonVerifier gateway.IdentityVerifier
)

func mustConfig() *config.Config {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized")
	}
	return cfg
}

// DefaultQuotaService 配额服务单例，配置热更新时调用 UpdatePolicy
func DefaultQuotaService() service.QuotaService {
	assert.NotCircular()
	quotaServiceOnce.Do(func() {
		policy, err := service.NewQuotaPolicy(mustConfig().Quota)
		if err != nil {
			logger.Warnf("invalid quota policy, falling back to UTC error=%v", err)
			policy.Location = time.UTC
		}
		singletonQuotaService = service.NewQuotaService(quota.DefaultLedger(), policy)
	})
	assert.NotNil(singletonQuotaService)
	return singletonQuotaService
}

// DefaultFormatService 基于 yt-dlp 探测的格式解析单例
func DefaultFormatService() service.FormatService {
	assert.NotCircular()
	formatServiceOnce.Do(func() {
		singletonFormatService = service.NewFormatService(executor.NewYtDlpProbe(mustConfig().Pipeline.YtDlp))
	})
	assert.NotNil(singletonFormatService)
	return singletonFormatService
}

// DefaultArtifactService 产物链接签发单例
func DefaultArtifactService() service.ArtifactService {
	assert.NotCircular()
	artifactServiceOnce.Do(func() {
		singletonArtifactService = service.NewArtifactService(storage.DefaultStorage(), mustConfig().Artifact.URLTTL)
	})
	assert.NotNil(singletonArtifactService)
	return singletonArtifactService
}

// DefaultExecutorRegistry 步骤执行器注册表单例
func DefaultExecutorRegistry() *executor.Registry {
	assert.NotCircular()
	registryOnce.Do(func() {
		var discovery executor.AddressResolver
		if d := resource.DefaultEtcdResource().Discovery(); d != nil {
			discovery = d
		}
		singletonRegistry = executor.NewRegistryFromConfig(mustConfig(), storage.DefaultStorage(), DefaultFormatService(), discovery)
		logger.Infof("Step executors registered kinds=%v", singletonRegistry.Kinds())
	})
	assert.NotNil(singletonRegistry)
	return singletonRegistry
}

// DefaultPipelineService 流水线服务单例，注入 worker 组件
func DefaultPipelineService() service.PipelineService {
	assert.NotCircular()
	pipelineServiceOnce.Do(func() {
		cfg := mustConfig()
		jobRepo := persistence.DefaultJobRepository()
		singletonPipelineService = service.NewPipelineService(
			jobRepo,
			DefaultQuotaService(),
			DefaultExecutorRegistry(),
			DefaultArtifactService(),
			progress.NewDBSink(jobRepo, cfg.Pipeline.ProgressMinDelta, cfg.Pipeline.ProgressFlushInterval),
			event.DefaultPublisher(cfg),
			service.PipelineOptions{
				TempDir: cfg.Pipeline.TempDir,
				StepTimeout: func(kind vo.StepKind) time.Duration {
					return cfg.Pipeline.StepTimeout(kind.String())
				},
			},
		)
	})
	assert.NotNil(singletonPipelineService)
	return singletonPipelineService
}

// DefaultIdentityVerifier JWT 校验器单例
func DefaultIdentityVerifier() gateway.IdentityVerifier {
	assert.NotCircular()
	verifierOnce.Do(func() {
		singletonVerifier = identity.NewJWTVerifier(mustConfig().JWT)
	})
	assert.NotNil(singletonVerifier)
	return singletonVerifier
}
