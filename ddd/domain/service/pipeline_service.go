package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
)

// PipelineService 作业流水线执行
type PipelineService interface {
	// ExecuteJob 认领并执行作业，作业已被其他 worker 认领时返回 false
	ExecuteJob(ctx context.Context, jobUUID, workerID string) (bool, error)
}

// PipelineOptions 执行参数
type PipelineOptions struct {
	TempDir     string
	StepTimeout func(kind vo.StepKind) time.Duration
}

type pipelineServiceImpl struct {
	jobRepo   repo.JobRepository
	quota     QuotaService
	executors port.StepExecutorRegistry
	artifacts ArtifactService
	progress  port.ProgressSink
	events    port.JobEventPublisher
	opts      PipelineOptions
	now       func() time.Time
}

// NewPipelineService 创建流水线服务
func NewPipelineService(
	jobRepo repo.JobRepository,
	quota QuotaService,
	executors port.StepExecutorRegistry,
	artifacts ArtifactService,
	progress port.ProgressSink,
	events port.JobEventPublisher,
	opts PipelineOptions,
) PipelineService {
	if events == nil {
		events = port.NopEventPublisher{}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.StepTimeout == nil {
		opts.StepTimeout = func(vo.StepKind) time.Duration { return 30 * time.Minute }
	}
	return &pipelineServiceImpl{
		jobRepo:   jobRepo,
		quota:     quota,
		executors: executors,
		artifacts: artifacts,
		progress:  progress,
		events:    events,
		opts:      opts,
		now:       time.Now,
	}
}

// execution 单次执行持有的作业，进度回调可能来自执行器的其他协程
type execution struct {
	mu  sync.Mutex
	job *entity.Job
}

func (e *execution) update(fn func(j *entity.Job) error) (*entity.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.job); err != nil {
		return nil, err
	}
	return e.job.Clone(), nil
}

func (e *execution) snapshot() *entity.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone()
}

func (s *pipelineServiceImpl) ExecuteJob(ctx context.Context, jobUUID, workerID string) (bool, error) {
	// 先读后认领：认领成功后不再需要回读，不会留下读失败的 running 行
	job, err := s.jobRepo.GetJob(ctx, jobUUID)
	if err != nil {
		return false, errno.NewBizError(errno.ErrDatabase, err)
	}
	if job == nil || job.Status() != vo.JobStatusQueued {
		logger.Debugf("job missing or not queued job_uuid=%s worker=%s", jobUUID, workerID)
		return false, nil
	}

	now := s.now().UTC()
	claimed, err := s.jobRepo.ClaimJob(ctx, jobUUID, workerID, now)
	if err != nil {
		return false, errno.NewBizError(errno.ErrDatabase, err)
	}
	if !claimed {
		logger.Debugf("job already claimed job_uuid=%s worker=%s", jobUUID, workerID)
		return false, nil
	}
	if err := job.MarkRunning(workerID, now); err != nil {
		return true, s.failJob(ctx, &execution{job: job}, -1, err)
	}

	logger.Info("Pipeline started", map[string]interface{}{
		"job_uuid": jobUUID,
		"worker":   workerID,
		"steps":    job.StepCount(),
		"identity": job.Identity().QuotaKey(),
	})

	workDir := filepath.Join(s.opts.TempDir, jobUUID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return true, s.failJob(ctx, &execution{job: job}, 0, fmt.Errorf("create work dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	exec := &execution{job: job}
	for i := 0; i < job.StepCount(); i++ {
		if err := s.runStep(ctx, exec, i, workDir); err != nil {
			return true, s.failJob(ctx, exec, i, err)
		}
	}
	return true, s.completeJob(ctx, exec)
}

func (s *pipelineServiceImpl) runStep(ctx context.Context, exec *execution, i int, workDir string) error {
	current := exec.snapshot()
	step := current.Step(i)
	executor, ok := s.executors.Executor(step.Kind)
	if !ok {
		return fmt.Errorf("no executor registered for step kind %s", step.Kind)
	}

	started, err := exec.update(func(j *entity.Job) error { return j.StartStep(i, s.now().UTC()) })
	if err != nil {
		return err
	}
	if err := s.jobRepo.SaveJob(ctx, started); err != nil {
		if errors.Is(err, repo.ErrJobTerminal) {
			return err
		}
		logger.Warnf("persist step start failed job_uuid=%s step=%d error=%v", started.JobUUID(), i, err)
	}

	timeout := s.opts.StepTimeout(step.Kind)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := port.StepRequest{
		Job:      started,
		Step:     started.Step(i),
		InputRef: started.PrimaryInput(i),
		WorkDir:  filepath.Join(workDir, fmt.Sprintf("%02d-%s", i, step.Kind)),
		Progress: func(fraction float64) { s.onProgress(ctx, exec, i, fraction) },
		Phase:    func(status vo.JobStatus) { s.onPhase(ctx, exec, status) },
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create step dir: %w", err)
	}

	result, err := executor.Execute(stepCtx, req)
	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return err
	}
	if result == nil || len(result.Objects) == 0 {
		return errors.New("step produced no output")
	}

	produced := make([]entity.Artifact, 0, len(result.Objects))
	for _, obj := range result.Objects {
		artifact, err := s.artifacts.Issue(ctx, obj, step.Kind.ArtifactKind())
		if err != nil {
			return err
		}
		produced = append(produced, artifact)
	}

	done, err := exec.update(func(j *entity.Job) error {
		now := s.now().UTC()
		if err := j.LeaveResolvingFormats(now); err != nil {
			return err
		}
		if result.Platform != "" {
			j.SetPlatform(result.Platform)
		}
		return j.CompleteStep(i, produced, now)
	})
	if err != nil {
		return err
	}
	if err := s.jobRepo.SaveJob(ctx, done); err != nil {
		return fmt.Errorf("persist step result: %w", err)
	}
	logger.Infof("Pipeline step completed job_uuid=%s step=%d kind=%s progress=%d", done.JobUUID(), i, step.Kind, done.Progress())
	return nil
}

func (s *pipelineServiceImpl) onProgress(ctx context.Context, exec *execution, i int, fraction float64) {
	var (
		changed  bool
		progress int
		job      *entity.Job
	)
	exec.mu.Lock()
	changed = exec.job.UpdateStepProgress(i, fraction, s.now().UTC())
	progress = exec.job.Progress()
	if changed {
		job = exec.job.Clone()
	}
	exec.mu.Unlock()
	if !changed || s.progress == nil {
		return
	}
	if err := s.progress.SaveProgress(ctx, job, progress); err != nil {
		logger.Warnf("save progress failed job_uuid=%s progress=%d error=%v", job.JobUUID(), progress, err)
	}
}

func (s *pipelineServiceImpl) onPhase(ctx context.Context, exec *execution, status vo.JobStatus) {
	updated, err := exec.update(func(j *entity.Job) error {
		now := s.now().UTC()
		switch status {
		case vo.JobStatusResolvingFormats:
			return j.EnterResolvingFormats(now)
		case vo.JobStatusRunning:
			return j.LeaveResolvingFormats(now)
		}
		return fmt.Errorf("unsupported phase %s", status)
	})
	if err != nil {
		logger.Warnf("phase change ignored status=%s error=%v", status, err)
		return
	}
	if err := s.jobRepo.SaveJob(ctx, updated); err != nil {
		logger.Warnf("persist phase failed job_uuid=%s status=%s error=%v", updated.JobUUID(), status, err)
	}
}

func (s *pipelineServiceImpl) failJob(ctx context.Context, exec *execution, i int, cause error) error {
	kind := "pipeline"
	failed, err := exec.update(func(j *entity.Job) error {
		if i >= 0 && i < j.StepCount() {
			kind = j.Step(i).Kind.String()
		}
		return j.Fail(i, fmt.Sprintf("%s step failed: %v", kind, cause), s.now().UTC())
	})
	if err != nil {
		logger.Errorf("mark job failed rejected error=%v cause=%v", err, cause)
		return errno.NewBizError(errno.ErrStepFailure, cause)
	}
	if err := s.jobRepo.SaveJob(ctx, failed); err != nil {
		if errors.Is(err, repo.ErrJobTerminal) {
			// 已由其他写入方置为终态，以存储为准
			logger.Warnf("job already terminal, failure not recorded job_uuid=%s cause=%v", failed.JobUUID(), cause)
			return errno.NewBizError(errno.ErrStepFailure, cause)
		}
		logger.Errorf("persist failed job error job_uuid=%s error=%v", failed.JobUUID(), err)
	}
	logger.Warn("Pipeline failed", map[string]interface{}{
		"job_uuid": failed.JobUUID(),
		"step":     i,
		"kind":     kind,
		"progress": failed.Progress(),
		"reason":   failed.FailureReason(),
	})
	s.publish(ctx, port.JobEventFailed, failed)
	return errno.NewBizError(errno.ErrStepFailure, cause)
}

func (s *pipelineServiceImpl) completeJob(ctx context.Context, exec *execution) error {
	completed, err := exec.update(func(j *entity.Job) error { return j.Complete(s.now().UTC()) })
	if err != nil {
		return s.failJob(ctx, exec, -1, err)
	}
	if err := s.jobRepo.SaveJob(ctx, completed); err != nil {
		if errors.Is(err, repo.ErrJobTerminal) {
			// 存储中已是失败，不计配额也不发完成事件
			logger.Warnf("job turned terminal before completion was saved job_uuid=%s", completed.JobUUID())
			return errno.NewBizError(errno.ErrStepFailure, err)
		}
		return errno.NewBizError(errno.ErrDatabase, err)
	}

	// 只有成功完成才计入配额
	var bytes int64
	for _, a := range completed.AllArtifacts() {
		bytes += a.SizeBytes
	}
	count, err := s.quota.Consume(ctx, completed.Identity(), *completed.CompletedAt(), bytes)
	if err != nil {
		logger.Errorf("quota increment failed job_uuid=%s identity=%s error=%v", completed.JobUUID(), completed.Identity().QuotaKey(), err)
	}

	logger.Info("Pipeline completed", map[string]interface{}{
		"job_uuid":    completed.JobUUID(),
		"artifacts":   len(completed.AllArtifacts()),
		"bytes":       bytes,
		"quota_used":  count,
		"identity":    completed.Identity().QuotaKey(),
		"duration_ms": completed.CompletedAt().Sub(completed.CreatedAt()).Milliseconds(),
	})
	s.publish(ctx, port.JobEventCompleted, completed)
	return nil
}

func (s *pipelineServiceImpl) publish(ctx context.Context, eventType string, job *entity.Job) {
	event := port.JobEvent{
		Type:          eventType,
		JobUUID:       job.JobUUID(),
		Identity:      job.Identity().QuotaKey(),
		Status:        job.Status().String(),
		Progress:      job.Progress(),
		FailureReason: job.FailureReason(),
		Artifacts:     len(job.VisibleArtifacts()),
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warnf("publish job event failed type=%s job_uuid=%s error=%v", eventType, job.JobUUID(), err)
	}
}
