package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"media-pipeline-service/ddd/domain/vo"
)

// Job 媒体处理作业实体
type Job struct {
	id            uint64 // 数据库主键ID
	jobUUID       string
	identity      vo.Identity
	source        string
	quality       string
	options       vo.JobOptions
	platform      string
	steps         []ChainStep
	status        vo.JobStatus
	progress      int
	failureReason string
	artifacts     []Artifact
	workerID      string
	createdAt     time.Time
	updatedAt     time.Time
	startedAt     *time.Time
	completedAt   *time.Time
}

// JobSnapshot 作业的完整状态，用于持久化还原与复制
type JobSnapshot struct {
	ID            uint64
	JobUUID       string
	Identity      vo.Identity
	Source        string
	Quality       string
	Options       vo.JobOptions
	Platform      string
	Steps         []ChainStep
	Status        vo.JobStatus
	Progress      int
	FailureReason string
	Artifacts     []Artifact
	WorkerID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// NewJob 创建排队中的作业（自动生成UUID）
func NewJob(identity vo.Identity, source, quality string, kinds []vo.StepKind, options vo.JobOptions) *Job {
	now := time.Now().UTC()
	if quality == "" {
		quality = vo.QualityBest
	}
	return &Job{
		jobUUID:   uuid.New().String(),
		identity:  identity,
		source:    source,
		quality:   quality,
		options:   options,
		steps:     BuildChain(source, kinds),
		status:    vo.JobStatusQueued,
		progress:  0,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreJob 从快照还原作业
func RestoreJob(s JobSnapshot) *Job {
	return &Job{
		id:            s.ID,
		jobUUID:       s.JobUUID,
		identity:      s.Identity,
		source:        s.Source,
		quality:       s.Quality,
		options:       s.Options,
		platform:      s.Platform,
		steps:         copySteps(s.Steps),
		status:        s.Status,
		progress:      s.Progress,
		failureReason: s.FailureReason,
		artifacts:     append([]Artifact(nil), s.Artifacts...),
		workerID:      s.WorkerID,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
		startedAt:     copyTime(s.StartedAt),
		completedAt:   copyTime(s.CompletedAt),
	}
}

// Snapshot 导出作业状态
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:            j.id,
		JobUUID:       j.jobUUID,
		Identity:      j.identity,
		Source:        j.source,
		Quality:       j.quality,
		Options:       j.options,
		Platform:      j.platform,
		Steps:         copySteps(j.steps),
		Status:        j.status,
		Progress:      j.progress,
		FailureReason: j.failureReason,
		Artifacts:     append([]Artifact(nil), j.artifacts...),
		WorkerID:      j.workerID,
		CreatedAt:     j.createdAt,
		UpdatedAt:     j.updatedAt,
		StartedAt:     copyTime(j.startedAt),
		CompletedAt:   copyTime(j.completedAt),
	}
}

// Clone 深拷贝
func (j *Job) Clone() *Job {
	return RestoreJob(j.Snapshot())
}

func (j *Job) ID() uint64 { return j.id }
func (j *Job) SetID(id uint64) { j.id = id }
func (j *Job) JobUUID() string { return j.jobUUID }
func (j *Job) Identity() vo.Identity { return j.identity }
func (j *Job) Source() string { return j.source }
func (j *Job) Quality() string { return j.quality }
func (j *Job) Options() vo.JobOptions { return j.options }
func (j *Job) Platform() string { return j.platform }
func (j *Job) Status() vo.JobStatus { return j.status }
func (j *Job) Progress() int { return j.progress }
func (j *Job) FailureReason() string { return j.failureReason }
func (j *Job) WorkerID() string { return j.workerID }
func (j *Job) CreatedAt() time.Time { return j.createdAt }
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }
func (j *Job) StartedAt() *time.Time { return j.startedAt }
func (j *Job) CompletedAt() *time.Time { return j.completedAt }
func (j *Job) Steps() []ChainStep { return copySteps(j.steps) }
func (j *Job) Step(i int) ChainStep { return j.steps[i] }
func (j *Job) StepCount() int { return len(j.steps) }
func (j *Job) IsTerminal() bool { return j.status.IsTerminal() }
func (j *Job) IsCompleted() bool { return j.status == vo.JobStatusCompleted }
func (j *Job) IsFailed() bool { return j.status == vo.JobStatusFailed }
func (j *Job) SetPlatform(p string) { j.platform = p }
func (j *Job) AllArtifacts() []Artifact { return append([]Artifact(nil), j.artifacts...) }

// VisibleArtifacts 仅在作业完成后对外暴露产物
func (j *Job) VisibleArtifacts() []Artifact {
	if j.status != vo.JobStatusCompleted {
		return nil
	}
	return j.AllArtifacts()
}

// MarkRunning 认领后进入执行状态
func (j *Job) MarkRunning(workerID string, now time.Time) error {
	if err := j.transition(vo.JobStatusRunning, now); err != nil {
		return err
	}
	j.workerID = workerID
	j.startedAt = &now
	return nil
}

// EnterResolvingFormats 进入清晰度解析子状态
func (j *Job) EnterResolvingFormats(now time.Time) error {
	return j.transition(vo.JobStatusResolvingFormats, now)
}

// LeaveResolvingFormats 解析完成回到执行状态
func (j *Job) LeaveResolvingFormats(now time.Time) error {
	if j.status != vo.JobStatusResolvingFormats {
		return nil
	}
	return j.transition(vo.JobStatusRunning, now)
}

// StartStep 开始执行第 i 步
func (j *Job) StartStep(i int, now time.Time) error {
	if err := j.checkStep(i); err != nil {
		return err
	}
	if !j.status.IsActive() {
		return fmt.Errorf("job %s is not running (status=%s)", j.jobUUID, j.status)
	}
	for k := 0; k < i; k++ {
		if j.steps[k].Status != vo.JobStatusCompleted {
			return fmt.Errorf("step %d started before step %d completed", i, k)
		}
	}
	j.steps[i].Status = vo.JobStatusRunning
	j.steps[i].StartedAt = &now
	j.updatedAt = now
	return nil
}

// UpdateStepProgress 更新当前步骤进度，返回作业整体进度是否增加
func (j *Job) UpdateStepProgress(i int, fraction float64, now time.Time) bool {
	if j.checkStep(i) != nil || !j.status.IsActive() {
		return false
	}
	if p := int(fraction * 100); p > j.steps[i].Progress && p <= 100 {
		j.steps[i].Progress = p
	}
	return j.advanceProgress(ComputeProgress(j.steps, i, fraction), now)
}

// CompleteStep 第 i 步成功，记录产物并将主产物作为下一步输入
func (j *Job) CompleteStep(i int, produced []Artifact, now time.Time) error {
	if err := j.checkStep(i); err != nil {
		return err
	}
	if j.steps[i].Status != vo.JobStatusRunning {
		return fmt.Errorf("step %d is not running (status=%s)", i, j.steps[i].Status)
	}
	j.steps[i].Status = vo.JobStatusCompleted
	j.steps[i].Progress = 100
	j.steps[i].FinishedAt = &now
	j.artifacts = append(j.artifacts, produced...)
	if i+1 < len(j.steps) && len(produced) > 0 {
		j.steps[i+1].InputRef = produced[0].ObjectKey
	}
	j.advanceProgress(ComputeProgress(j.steps, i+1, 0), now)
	j.updatedAt = now
	return nil
}

// Fail 作业失败，进度冻结在当前值
func (j *Job) Fail(stepIndex int, reason string, now time.Time) error {
	if err := j.transition(vo.JobStatusFailed, now); err != nil {
		return err
	}
	if stepIndex >= 0 && stepIndex < len(j.steps) {
		j.steps[stepIndex].Status = vo.JobStatusFailed
		j.steps[stepIndex].Error = reason
		j.steps[stepIndex].FinishedAt = &now
	}
	j.failureReason = reason
	j.completedAt = &now
	return nil
}

// Complete 所有步骤成功后完成作业
func (j *Job) Complete(now time.Time) error {
	for _, s := range j.steps {
		if s.Status != vo.JobStatusCompleted {
			return fmt.Errorf("step %d (%s) has not completed", s.Index, s.Kind)
		}
	}
	if err := j.transition(vo.JobStatusCompleted, now); err != nil {
		return err
	}
	j.progress = 100
	j.completedAt = &now
	return nil
}

// CurrentStep 正在执行的步骤下标，没有时返回 -1
func (j *Job) CurrentStep() int {
	for i, s := range j.steps {
		if s.Status == vo.JobStatusRunning {
			return i
		}
	}
	return -1
}

// PrimaryInput 第 i 步的输入引用
func (j *Job) PrimaryInput(i int) string {
	if j.checkStep(i) != nil {
		return ""
	}
	return j.steps[i].InputRef
}

func (j *Job) advanceProgress(p int, now time.Time) bool {
	// 未完成前最多 99
	if p > 99 {
		p = 99
	}
	if p <= j.progress {
		return false
	}
	j.progress = p
	j.updatedAt = now
	return true
}

func (j *Job) transition(target vo.JobStatus, now time.Time) error {
	if !j.status.CanTransitionTo(target) {
		return fmt.Errorf("invalid job status transition %s -> %s", j.status, target)
	}
	j.status = target
	j.updatedAt = now
	return nil
}

func (j *Job) checkStep(i int) error {
	if i < 0 || i >= len(j.steps) {
		return fmt.Errorf("step index %d out of range [0,%d)", i, len(j.steps))
	}
	return nil
}

func copySteps(steps []ChainStep) []ChainStep {
	if steps == nil {
		return nil
	}
	out := make([]ChainStep, len(steps))
	for i, s := range steps {
		s.StartedAt = copyTime(s.StartedAt)
		s.FinishedAt = copyTime(s.FinishedAt)
		out[i] = s
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
