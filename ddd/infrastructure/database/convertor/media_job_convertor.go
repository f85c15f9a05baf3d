package convertor

import (
	"encoding/json"

	"gorm.io/datatypes"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/po"
	"media-pipeline-service/pkg/logger"
)

// MediaJobConvertor 作业实体与PO互转
type MediaJobConvertor struct{}

// NewMediaJobConvertor 创建转换器
func NewMediaJobConvertor() *MediaJobConvertor {
	return &MediaJobConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *MediaJobConvertor) ToEntity(p *po.MediaJob) *entity.Job {
	if p == nil {
		return nil
	}
	status, err := vo.ParseJobStatus(p.Status)
	if err != nil {
		logger.Warnf("unknown job status in storage job_uuid=%s status=%s", p.JobUUID, p.Status)
		status = vo.JobStatusFailed
	}

	var (
		options   vo.JobOptions
		steps     []entity.ChainStep
		artifacts []entity.Artifact
	)
	decodeJSON(p.Options, &options, p.JobUUID, "options")
	decodeJSON(p.Steps, &steps, p.JobUUID, "steps")
	decodeJSON(p.Artifacts, &artifacts, p.JobUUID, "artifacts")

	identity := vo.Identity{Class: vo.IdentityClass(p.IdentityClass), Subject: p.Subject, Plan: p.Plan}
	return entity.RestoreJob(entity.JobSnapshot{
		ID:            p.Id,
		JobUUID:       p.JobUUID,
		Identity:      identity,
		Source:        p.Source,
		Quality:       p.Quality,
		Options:       options,
		Platform:      p.Platform,
		Steps:         steps,
		Status:        status,
		Progress:      p.Progress,
		FailureReason: p.FailureReason,
		Artifacts:     artifacts,
		WorkerID:      p.WorkerID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		StartedAt:     p.StartedAt,
		CompletedAt:   p.CompletedAt,
	})
}

// ToPO 将Entity转换为PO
func (c *MediaJobConvertor) ToPO(job *entity.Job) (*po.MediaJob, error) {
	s := job.Snapshot()
	options, err := json.Marshal(s.Options)
	if err != nil {
		return nil, err
	}
	steps, err := json.Marshal(s.Steps)
	if err != nil {
		return nil, err
	}
	artifacts := s.Artifacts
	if artifacts == nil {
		artifacts = []entity.Artifact{}
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return nil, err
	}
	return &po.MediaJob{
		BaseModel: po.BaseModel{
			Id:        s.ID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		JobUUID:       s.JobUUID,
		IdentityClass: string(s.Identity.Class),
		IdentityKey:   s.Identity.QuotaKey(),
		Subject:       s.Identity.Subject,
		Plan:          s.Identity.Plan,
		Source:        s.Source,
		Quality:       s.Quality,
		Platform:      s.Platform,
		Status:        s.Status.String(),
		Progress:      s.Progress,
		FailureReason: s.FailureReason,
		WorkerID:      s.WorkerID,
		Options:       datatypes.JSON(options),
		Steps:         datatypes.JSON(steps),
		Artifacts:     datatypes.JSON(artifactsJSON),
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
	}, nil
}

// ToEntities 批量将PO转换为Entity
func (c *MediaJobConvertor) ToEntities(pos []*po.MediaJob) []*entity.Job {
	jobs := make([]*entity.Job, 0, len(pos))
	for _, p := range pos {
		if j := c.ToEntity(p); j != nil {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

func decodeJSON(raw datatypes.JSON, out interface{}, jobUUID, field string) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warnf("decode job column failed job_uuid=%s field=%s error=%v", jobUUID, field, err)
	}
}
