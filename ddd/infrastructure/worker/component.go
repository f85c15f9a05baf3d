package worker

import (
	"context"
	"fmt"

	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/task"
)

// PipelineWorkerComponentPlugin 负责启动流水线Worker
type PipelineWorkerComponentPlugin struct{}

func (p *PipelineWorkerComponentPlugin) Name() string {
	return "pipelineWorkerComponent"
}

func (p *PipelineWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if !cfg.Worker.Enabled {
		logger.Infof("Pipeline worker disabled, this instance only accepts submissions")
		return nil
	}
	pipeline, ok := deps.PipelineService.(service.PipelineService)
	if !ok || pipeline == nil {
		panic("pipeline service not provided to worker component")
	}

	w := NewPipelineWorker(cfg.Worker.WorkerID, queue.DefaultJobQueue(), pipeline, persistence.DefaultJobRepository(), OptionsFromConfig(cfg))
	DefaultWorkerManager().AddWorker(w)
	return &pipelineWorkerComponent{name: "pipelineWorker", worker: w}
}

// OptionsFromConfig 从配置推导工作器参数
func OptionsFromConfig(cfg *config.Config) Options {
	longest := cfg.Pipeline.DefaultStepTimeout
	for _, d := range cfg.Pipeline.StepTimeouts {
		if d > longest {
			longest = d
		}
	}
	return Options{
		WorkerCount:      cfg.Worker.MaxConcurrentTasks,
		GracePeriod:      cfg.Worker.ShutdownGracePeriod,
		RecoveryInterval: cfg.Worker.RecoveryInterval,
		RequeueAfter:     cfg.Worker.RequeueAfter,
		// 单步超时之后仍无更新，说明持有作业的 worker 已经不在
		StaleAfter: longest + cfg.Worker.RequeueAfter,
	}
}

type pipelineWorkerComponent struct {
	name   string
	worker PipelineWorker
}

func (c *pipelineWorkerComponent) Start() error {
	if c.worker == nil {
		return fmt.Errorf("pipeline worker not initialized")
	}

	// 注册后台任务，让应用启动时统一管理
	task.Register(&backgroundTaskAdapter{name: c.name, startFunc: c.worker.Start, stopFunc: c.worker.Stop})
	logger.Infof("Pipeline worker component registered background tasks name=%s", c.name)
	return nil
}

func (c *pipelineWorkerComponent) Stop() error {
	// 后台任务由 task 管理器停止，这里只关闭派发队列
	queue.CloseDefaultJobQueue()
	logger.Infof("Pipeline worker component stopped name=%s", c.name)
	return nil
}

func (c *pipelineWorkerComponent) GetName() string {
	return c.name
}

// backgroundTaskAdapter adapts Start/Stop functions to the BackgroundTask interface.
type backgroundTaskAdapter struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

func (b *backgroundTaskAdapter) Name() string                    { return b.name }
func (b *backgroundTaskAdapter) Start(ctx context.Context) error { return b.startFunc(ctx) }
func (b *backgroundTaskAdapter) Stop() error                     { return b.stopFunc() }
