package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/pkg/logger"
)

// PipelineWorker 流水线工作器接口
type PipelineWorker interface {
	// Start 启动工作器
	Start(ctx context.Context) error

	// Stop 停止工作器，等待执行中的作业直到宽限期结束
	Stop() error

	// IsRunning 检查工作器是否运行中
	IsRunning() bool

	// ID 工作器标识
	ID() string

	// GetStats 获取工作器统计信息
	GetStats() WorkerStats
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64
	SuccessfulTasks  uint64
	FailedTasks      uint64
	SkippedTasks     uint64
	RequeuedTasks    uint64
	CurrentlyRunning int
	Concurrency      int
	StartTime        time.Time
	LastTaskTime     time.Time
}

// Options 工作器参数
type Options struct {
	WorkerCount      int
	GracePeriod      time.Duration
	RecoveryInterval time.Duration
	// RequeueAfter queued 超过该时长的作业会被重新派发
	RequeueAfter time.Duration
	// StaleAfter running 超过该时长未更新的作业视为 worker 丢失，置为失败
	StaleAfter time.Duration
}

// pipelineWorkerImpl 流水线工作器实现
type pipelineWorkerImpl struct {
	id        string
	jobQueue  port.DispatchQueue
	pipeline  service.PipelineService
	jobRepo   repo.JobRepository
	opts      Options
	running   bool
	cancel    context.CancelFunc
	jobCancel context.CancelFunc
	stats     WorkerStats
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// NewPipelineWorker 创建流水线工作器
func NewPipelineWorker(
	id string,
	jobQueue port.DispatchQueue,
	pipeline service.PipelineService,
	jobRepo repo.JobRepository,
	opts Options,
) PipelineWorker {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 10 * time.Second
	}
	return &pipelineWorkerImpl{
		id:       id,
		jobQueue: jobQueue,
		pipeline: pipeline,
		jobRepo:  jobRepo,
		opts:     opts,
		stats: WorkerStats{
			StartTime:   time.Now(),
			Concurrency: opts.WorkerCount,
		},
	}
}

func (w *pipelineWorkerImpl) ID() string { return w.id }

// Start 启动工作器
func (w *pipelineWorkerImpl) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}

	// 出队循环随 ctx 停止；作业执行使用独立上下文，停止时先等待宽限期
	loopCtx, cancel := context.WithCancel(ctx)
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.jobCancel = jobCancel
	w.running = true
	w.stats.StartTime = time.Now()

	logger.Infof("Starting pipeline worker %s with %d goroutines", w.id, w.opts.WorkerCount)

	for i := 0; i < w.opts.WorkerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(loopCtx, jobCtx, i)
	}

	if w.jobRepo != nil && w.opts.RecoveryInterval > 0 {
		w.wg.Add(1)
		go w.taskRecoveryLoop(loopCtx)
	}

	return nil
}

// Stop 停止工作器
func (w *pipelineWorkerImpl) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, jobCancel := w.cancel, w.jobCancel
	w.running = false
	w.mu.Unlock()

	logger.Infof("Stopping pipeline worker %s", w.id)
	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.opts.GracePeriod):
		logger.Warnf("Pipeline worker %s grace period %s elapsed, aborting running jobs", w.id, w.opts.GracePeriod)
		jobCancel()
		<-done
	}
	jobCancel()
	logger.Infof("Pipeline worker %s stopped", w.id)
	return nil
}

// IsRunning 检查工作器是否运行中
func (w *pipelineWorkerImpl) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *pipelineWorkerImpl) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// workerLoop 工作器主循环
func (w *pipelineWorkerImpl) workerLoop(ctx, jobCtx context.Context, slot int) {
	defer w.wg.Done()

	logger.Debugf("Worker %s-%d started", w.id, slot)
	defer logger.Debugf("Worker %s-%d stopped", w.id, slot)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobUUID, err := w.jobQueue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warnf("Worker %s-%d failed to dequeue job: %v", w.id, slot, err)
			time.Sleep(time.Second) // 避免忙等待
			continue
		}
		if jobUUID == "" {
			continue
		}

		w.processTask(jobCtx, jobUUID, slot)
	}
}

// processTask 认领并执行单个作业
func (w *pipelineWorkerImpl) processTask(ctx context.Context, jobUUID string, slot int) {
	w.updateStats(func(stats *WorkerStats) {
		stats.CurrentlyRunning++
		stats.LastTaskTime = time.Now()
	})
	defer w.updateStats(func(stats *WorkerStats) {
		stats.CurrentlyRunning--
	})

	claimed, err := w.pipeline.ExecuteJob(ctx, jobUUID, fmt.Sprintf("%s-%d", w.id, slot))
	if !claimed && err == nil {
		// 重复派发或已被其他 worker 认领
		w.updateStats(func(stats *WorkerStats) { stats.SkippedTasks++ })
		return
	}

	w.updateStats(func(stats *WorkerStats) {
		stats.ProcessedTasks++
		if err != nil {
			stats.FailedTasks++
		} else {
			stats.SuccessfulTasks++
		}
	})
	if err != nil {
		logger.Warnf("Worker %s-%d job %s failed: %v", w.id, slot, jobUUID, err)
		return
	}
	logger.Infof("Worker %s-%d job %s completed", w.id, slot, jobUUID)
}

// taskRecoveryLoop 补发丢失的派发消息，清理 worker 丢失后残留的执行中作业
func (w *pipelineWorkerImpl) taskRecoveryLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.requeueQueuedJobs(ctx)
			w.failStaleJobs(ctx)
		}
	}
}

// requeueQueuedJobs 重新派发长时间未被认领的作业，认领是幂等的。
// 队列里仍有消息时 queued 作业大多还在排队，不补发；补发前刷新 updated_at，
// 每个作业在 RequeueAfter 内最多补发一次
func (w *pipelineWorkerImpl) requeueQueuedJobs(ctx context.Context) {
	if w.opts.RequeueAfter <= 0 {
		return
	}
	if sized, ok := w.jobQueue.(interface{ Size() int }); ok && sized.Size() > 0 {
		return
	}
	now := time.Now().UTC()
	jobs, err := w.jobRepo.QueryJobsByStatus(ctx, vo.JobStatusQueued, now.Add(-w.opts.RequeueAfter), 100)
	if err != nil {
		logger.Warnf("Worker %s failed to query queued jobs: %v", w.id, err)
		return
	}
	for _, job := range jobs {
		touched, err := w.jobRepo.TouchQueued(ctx, job.JobUUID(), now)
		if err != nil {
			logger.Warnf("Worker %s failed to touch queued job %s: %v", w.id, job.JobUUID(), err)
			return
		}
		if !touched {
			continue
		}
		if err := w.jobQueue.Enqueue(ctx, job.JobUUID()); err != nil {
			logger.Warnf("Worker %s failed to re-enqueue job %s: %v", w.id, job.JobUUID(), err)
			return
		}
		w.updateStats(func(stats *WorkerStats) { stats.RequeuedTasks++ })
		logger.Infof("Worker %s re-enqueued job %s", w.id, job.JobUUID())
	}
}

// failStaleJobs 将长时间无进展的执行中作业置为失败
func (w *pipelineWorkerImpl) failStaleJobs(ctx context.Context) {
	if w.opts.StaleAfter <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-w.opts.StaleAfter)
	for _, status := range []vo.JobStatus{vo.JobStatusRunning, vo.JobStatusResolvingFormats} {
		jobs, err := w.jobRepo.QueryJobsByStatus(ctx, status, cutoff, 100)
		if err != nil {
			logger.Warnf("Worker %s failed to query stale jobs: %v", w.id, err)
			return
		}
		for _, job := range jobs {
			w.failStale(ctx, job)
		}
	}
}

func (w *pipelineWorkerImpl) failStale(ctx context.Context, job *entity.Job) {
	step := job.CurrentStep()
	kind := "pipeline"
	if step >= 0 {
		kind = job.Step(step).Kind.String()
	}
	reason := fmt.Sprintf("%s step failed: worker %s stopped responding", kind, job.WorkerID())
	if err := job.Fail(step, reason, time.Now().UTC()); err != nil {
		return
	}
	if err := w.jobRepo.SaveJob(ctx, job); err != nil {
		logger.Warnf("Worker %s failed to mark stale job %s: %v", w.id, job.JobUUID(), err)
		return
	}
	logger.Warnf("Worker %s marked stale job %s failed progress=%d", w.id, job.JobUUID(), job.Progress())
}

// updateStats 更新统计信息
func (w *pipelineWorkerImpl) updateStats(updateFunc func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	updateFunc(&w.stats)
}

// WorkerManager 工作器管理器
type WorkerManager struct {
	workers []PipelineWorker
	mu      sync.RWMutex
}

var (
	managerOnce      sync.Once
	singletonManager *WorkerManager
)

// DefaultWorkerManager 进程内工作器管理器单例，统计接口从这里读取
func DefaultWorkerManager() *WorkerManager {
	managerOnce.Do(func() {
		singletonManager = NewWorkerManager()
	})
	return singletonManager
}

// NewWorkerManager 创建工作器管理器
func NewWorkerManager() *WorkerManager {
	return &WorkerManager{
		workers: make([]PipelineWorker, 0),
	}
}

// AddWorker 添加工作器
func (wm *WorkerManager) AddWorker(worker PipelineWorker) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.workers = append(wm.workers, worker)
}

// GetAllStats 获取所有工作器的统计信息
func (wm *WorkerManager) GetAllStats() map[string]WorkerStats {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	stats := make(map[string]WorkerStats, len(wm.workers))
	for _, worker := range wm.workers {
		stats[worker.ID()] = worker.GetStats()
	}
	return stats
}

// Running 各工作器是否运行中
func (wm *WorkerManager) Running() map[string]bool {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	out := make(map[string]bool, len(wm.workers))
	for _, worker := range wm.workers {
		out[worker.ID()] = worker.IsRunning()
	}
	return out
}
