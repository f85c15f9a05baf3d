package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/ddd/application/dto"
	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
)

// JobApp 作业提交与查询
type JobApp interface {
	// SubmitJob 校验、检查配额、入库并派发，立即返回作业ID
	SubmitJob(ctx context.Context, identity vo.Identity, req *cqe.SubmitJobReq) (*dto.SubmitJobDTO, error)
	// GetJobStatus 查询作业状态，不存在时返回 NotFound
	GetJobStatus(ctx context.Context, req *cqe.GetJobReq) (*dto.JobStatusDTO, error)
	// RemainingQuota 查询当日剩余配额
	RemainingQuota(ctx context.Context, identity vo.Identity) (*dto.QuotaDTO, error)
}

type jobAppImpl struct {
	jobRepo  repo.JobRepository
	quota    service.QuotaService
	jobQueue port.DispatchQueue
}

var (
	jobAppOnce      sync.Once
	singletonJobApp JobApp
)

// DefaultJobApp 作业应用服务单例
func DefaultJobApp() JobApp {
	assert.NotCircular()
	jobAppOnce.Do(func() {
		singletonJobApp = NewJobAppWith(persistence.DefaultJobRepository(), DefaultQuotaService(), queue.DefaultJobQueue())
	})
	assert.NotNil(singletonJobApp)
	return singletonJobApp
}

// NewJobAppWith 使用指定依赖创建作业应用服务
func NewJobAppWith(jobRepo repo.JobRepository, quota service.QuotaService, jobQueue port.DispatchQueue) JobApp {
	return &jobAppImpl{jobRepo: jobRepo, quota: quota, jobQueue: jobQueue}
}

func (a *jobAppImpl) SubmitJob(ctx context.Context, identity vo.Identity, req *cqe.SubmitJobReq) (*dto.SubmitJobDTO, error) {
	if req == nil {
		return nil, errno.Newf(errno.ErrValidation, "request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 只读检查，成功完成后才计数
	state, err := a.quota.Check(ctx, identity)
	if err != nil {
		logger.Info("Submission rejected", map[string]interface{}{
			"identity": identity.QuotaKey(),
			"used":     state.Used,
			"limit":    state.Limit,
			"error":    err.Error(),
		})
		return nil, err
	}

	job := entity.NewJob(identity, req.Source, req.Quality, req.StepKinds(), req.Options)
	if err := a.jobRepo.CreateJob(ctx, job); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}

	if err := a.jobQueue.Enqueue(ctx, job.JobUUID()); err != nil {
		logger.Errorf("enqueue job failed job_uuid=%s error=%v", job.JobUUID(), err)
		if ferr := job.Fail(-1, "dispatch failed: "+err.Error(), time.Now().UTC()); ferr == nil {
			if serr := a.jobRepo.SaveJob(ctx, job); serr != nil {
				logger.Errorf("persist undispatched job failed job_uuid=%s error=%v", job.JobUUID(), serr)
			}
		}
		return nil, errno.NewBizError(errno.ErrQueueFull, err)
	}

	logger.Info("Job submitted", map[string]interface{}{
		"job_uuid": job.JobUUID(),
		"identity": identity.QuotaKey(),
		"source":   job.Source(),
		"quality":  job.Quality(),
		"steps":    stepNames(job),
	})
	return &dto.SubmitJobDTO{JobID: job.JobUUID(), Status: job.Status().String()}, nil
}

func (a *jobAppImpl) GetJobStatus(ctx context.Context, req *cqe.GetJobReq) (*dto.JobStatusDTO, error) {
	if req == nil || strings.TrimSpace(req.JobID) == "" {
		return nil, errno.Newf(errno.ErrValidation, "job id is required")
	}
	job, err := a.jobRepo.GetJob(ctx, strings.TrimSpace(req.JobID))
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if job == nil {
		return nil, errno.Newf(errno.ErrJobNotFound, "job %s does not exist", req.JobID)
	}
	return dto.NewJobStatusDTO(job), nil
}

func (a *jobAppImpl) RemainingQuota(ctx context.Context, identity vo.Identity) (*dto.QuotaDTO, error) {
	state, err := a.quota.State(ctx, identity)
	if err != nil {
		return nil, err
	}
	return dto.NewQuotaDTO(state), nil
}

func stepNames(job *entity.Job) string {
	names := make([]string, 0, job.StepCount())
	for _, s := range job.Steps() {
		names = append(names, s.Kind.String())
	}
	return strings.Join(names, ",")
}
