package dto

import (
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/vo"
)

// FormatTime 统一的时间输出格式
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// SubmitJobDTO 提交作业响应
type SubmitJobDTO struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// ArtifactDTO 作业产物
type ArtifactDTO struct {
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	ExpiresAt   string `json:"expiresAt"`
	SizeBytes   int64  `json:"sizeBytes"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
}

// StepDTO 步骤执行情况
type StepDTO struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Weight     int    `json:"weight"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// JobStatusDTO 作业状态
type JobStatusDTO struct {
	JobID         string        `json:"jobId"`
	Status        string        `json:"status"`
	Progress      int           `json:"progress"`
	Source        string        `json:"source"`
	Quality       string        `json:"quality"`
	Platform      string        `json:"platform,omitempty"`
	Artifacts     []ArtifactDTO `json:"artifacts,omitempty"`
	FailureReason string        `json:"failureReason,omitempty"`
	CreatedAt     string        `json:"createdAt"`
	StartedAt     string        `json:"startedAt,omitempty"`
	CompletedAt   string        `json:"completedAt,omitempty"`
	Steps         []StepDTO     `json:"steps"`
}

// NewJobStatusDTO 产物只在完成后返回，失败原因只在失败后返回
func NewJobStatusDTO(job *entity.Job) *JobStatusDTO {
	out := &JobStatusDTO{
		JobID:       job.JobUUID(),
		Status:      job.Status().String(),
		Progress:    job.Progress(),
		Source:      job.Source(),
		Quality:     job.Quality(),
		Platform:    job.Platform(),
		CreatedAt:   FormatTime(job.CreatedAt()),
		StartedAt:   formatTimePtr(job.StartedAt()),
		CompletedAt: formatTimePtr(job.CompletedAt()),
	}
	if job.Status() == vo.JobStatusFailed {
		out.FailureReason = job.FailureReason()
	}
	for _, a := range job.VisibleArtifacts() {
		out.Artifacts = append(out.Artifacts, ArtifactDTO{
			Kind:        a.Kind,
			URL:         a.URL,
			ExpiresAt:   FormatTime(a.ExpiresAt),
			SizeBytes:   a.SizeBytes,
			Filename:    a.Filename,
			ContentType: a.ContentType,
		})
	}
	steps := job.Steps()
	out.Steps = make([]StepDTO, 0, len(steps))
	for _, s := range steps {
		out.Steps = append(out.Steps, StepDTO{
			Index:      s.Index,
			Kind:       s.Kind.String(),
			Weight:     s.Weight,
			Status:     s.Status.String(),
			Progress:   s.Progress,
			Error:      s.Error,
			StartedAt:  formatTimePtr(s.StartedAt),
			FinishedAt: formatTimePtr(s.FinishedAt),
		})
	}
	return out
}
