package repo

import (
	"context"
	"errors"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/vo"
)

// ErrJobTerminal 存储中的作业已是终态，写回被拒绝
var ErrJobTerminal = errors.New("job is already in a terminal state")

// JobRepository 作业仓储
type JobRepository interface {
	// CreateJob 保存新作业
	CreateJob(ctx context.Context, job *entity.Job) error
	// GetJob 按UUID读取作业，不存在时返回 nil, nil
	GetJob(ctx context.Context, jobUUID string) (*entity.Job, error)
	// ClaimJob 原子地将 queued 作业置为 running，已被认领或不存在时返回 false
	ClaimJob(ctx context.Context, jobUUID, workerID string, now time.Time) (bool, error)
	// SaveJob 写回认领方持有的作业状态，存储中已是终态时返回 ErrJobTerminal
	SaveJob(ctx context.Context, job *entity.Job) error
	// TouchQueued 刷新 queued 作业的更新时间，作业已不是 queued 时返回 false
	TouchQueued(ctx context.Context, jobUUID string, now time.Time) (bool, error)
	// UpdateJobProgress 只增不减地更新进度
	UpdateJobProgress(ctx context.Context, jobUUID string, progress int) error
	// QueryJobsByStatus 按状态查询，olderThan 非零时只返回更新时间早于该时刻的作业
	QueryJobsByStatus(ctx context.Context, status vo.JobStatus, olderThan time.Time, limit int) ([]*entity.Job, error)
}
