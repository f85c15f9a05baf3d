package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/convertor"
	"media-pipeline-service/ddd/infrastructure/database/dao"
)

type mediaJobRepositoryImpl struct {
	jobDao    *dao.MediaJobDAO
	convertor *convertor.MediaJobConvertor
}

// NewJobRepository 使用默认数据库资源
func NewJobRepository() repo.JobRepository {
	return &mediaJobRepositoryImpl{
		jobDao:    dao.NewMediaJobDAO(),
		convertor: convertor.NewMediaJobConvertor(),
	}
}

// NewJobRepositoryWith 使用指定连接，测试中传入 sqlite
func NewJobRepositoryWith(db *gorm.DB) repo.JobRepository {
	return &mediaJobRepositoryImpl{
		jobDao:    dao.NewMediaJobDAOWith(db),
		convertor: convertor.NewMediaJobConvertor(),
	}
}

func (r *mediaJobRepositoryImpl) CreateJob(ctx context.Context, job *entity.Job) error {
	jobPo, err := r.convertor.ToPO(job)
	if err != nil {
		return err
	}
	if err := r.jobDao.Create(ctx, jobPo); err != nil {
		return err
	}
	job.SetID(jobPo.Id)
	return nil
}

func (r *mediaJobRepositoryImpl) GetJob(ctx context.Context, jobUUID string) (*entity.Job, error) {
	jobPo, err := r.jobDao.FindByJobUUID(ctx, jobUUID)
	if err != nil || jobPo == nil {
		return nil, err
	}
	return r.convertor.ToEntity(jobPo), nil
}

func (r *mediaJobRepositoryImpl) ClaimJob(ctx context.Context, jobUUID, workerID string, now time.Time) (bool, error) {
	return r.jobDao.Claim(ctx, jobUUID, workerID, now)
}

func (r *mediaJobRepositoryImpl) SaveJob(ctx context.Context, job *entity.Job) error {
	jobPo, err := r.convertor.ToPO(job)
	if err != nil {
		return err
	}
	matched, err := r.jobDao.Save(ctx, jobPo)
	if err != nil || matched {
		return err
	}
	// MySQL 对未变化的行返回 0，回读区分终态与不存在
	stored, err := r.jobDao.FindByJobUUID(ctx, job.JobUUID())
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("job %s not found", job.JobUUID())
	}
	if vo.JobStatus(stored.Status).IsTerminal() {
		return repo.ErrJobTerminal
	}
	return nil
}

func (r *mediaJobRepositoryImpl) TouchQueued(ctx context.Context, jobUUID string, now time.Time) (bool, error) {
	return r.jobDao.TouchQueued(ctx, jobUUID, now)
}

func (r *mediaJobRepositoryImpl) UpdateJobProgress(ctx context.Context, jobUUID string, progress int) error {
	return r.jobDao.UpdateProgress(ctx, jobUUID, progress)
}

func (r *mediaJobRepositoryImpl) QueryJobsByStatus(ctx context.Context, status vo.JobStatus, olderThan time.Time, limit int) ([]*entity.Job, error) {
	pos, err := r.jobDao.QueryByStatus(ctx, status.String(), olderThan, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntities(pos), nil
}
