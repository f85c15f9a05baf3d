package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"media-pipeline-service/ddd/infrastructure/database/po"
	"media-pipeline-service/internal/resource"
)

var terminalStatuses = []string{"completed", "failed"}

type MediaJobDAO struct {
	db *gorm.DB
}

func NewMediaJobDAO() *MediaJobDAO {
	return &MediaJobDAO{db: resource.DefaultDatabaseResource().MainDB()}
}

func NewMediaJobDAOWith(db *gorm.DB) *MediaJobDAO {
	return &MediaJobDAO{db: db}
}

func (d *MediaJobDAO) Create(ctx context.Context, job *po.MediaJob) error {
	return d.db.WithContext(ctx).Model(&po.MediaJob{}).Create(job).Error
}

// FindByJobUUID 不存在时返回 nil, nil
func (d *MediaJobDAO) FindByJobUUID(ctx context.Context, jobUUID string) (*po.MediaJob, error) {
	var job po.MediaJob
	err := d.db.WithContext(ctx).Where("job_uuid = ?", jobUUID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim 条件更新 queued -> running，影响行数为 1 才算认领成功
func (d *MediaJobDAO) Claim(ctx context.Context, jobUUID, workerID string, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&po.MediaJob{}).
		Where("job_uuid = ? AND status = ?", jobUUID, "queued").
		Updates(map[string]interface{}{
			"status":     "running",
			"worker_id":  workerID,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Save 写回作业状态，终态行不再更新，进度只增不减；返回是否命中非终态行
func (d *MediaJobDAO) Save(ctx context.Context, job *po.MediaJob) (bool, error) {
	res := d.db.WithContext(ctx).Model(&po.MediaJob{}).
		Where("job_uuid = ? AND status NOT IN ?", job.JobUUID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":         job.Status,
			"progress":       gorm.Expr("CASE WHEN progress > ? THEN progress ELSE ? END", job.Progress, job.Progress),
			"platform":       job.Platform,
			"failure_reason": job.FailureReason,
			"worker_id":      job.WorkerID,
			"steps":          job.Steps,
			"artifacts":      job.Artifacts,
			"started_at":     job.StartedAt,
			"completed_at":   job.CompletedAt,
			"updated_at":     job.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TouchQueued 只刷新仍为 queued 的行
func (d *MediaJobDAO) TouchQueued(ctx context.Context, jobUUID string, now time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&po.MediaJob{}).
		Where("job_uuid = ? AND status = ?", jobUUID, "queued").
		Update("updated_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *MediaJobDAO) UpdateProgress(ctx context.Context, jobUUID string, progress int) error {
	return d.db.WithContext(ctx).Model(&po.MediaJob{}).
		Where("job_uuid = ? AND progress < ? AND status NOT IN ?", jobUUID, progress, terminalStatuses).
		Updates(map[string]interface{}{"progress": progress, "updated_at": time.Now().UTC()}).Error
}

func (d *MediaJobDAO) QueryByStatus(ctx context.Context, status string, olderThan time.Time, limit int) ([]*po.MediaJob, error) {
	var jobs []*po.MediaJob
	q := d.db.WithContext(ctx).Where("status = ?", status)
	if !olderThan.IsZero() {
		q = q.Where("updated_at < ?", olderThan)
	}
	q = q.Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
