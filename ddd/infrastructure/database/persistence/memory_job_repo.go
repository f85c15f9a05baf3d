package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
)

// memoryJobRepository 进程内作业存储，单机开发与测试使用
type memoryJobRepository struct {
	mu     sync.Mutex
	jobs   map[string]entity.JobSnapshot
	nextID uint64
}

// NewMemoryJobRepository 创建内存仓储
func NewMemoryJobRepository() repo.JobRepository {
	return &memoryJobRepository{jobs: make(map[string]entity.JobSnapshot)}
}

func (r *memoryJobRepository) CreateJob(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobUUID()]; ok {
		return fmt.Errorf("job %s already exists", job.JobUUID())
	}
	r.nextID++
	job.SetID(r.nextID)
	r.jobs[job.JobUUID()] = job.Snapshot()
	return nil
}

func (r *memoryJobRepository) GetJob(_ context.Context, jobUUID string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[jobUUID]
	if !ok {
		return nil, nil
	}
	return entity.RestoreJob(s), nil
}

func (r *memoryJobRepository) ClaimJob(_ context.Context, jobUUID, workerID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[jobUUID]
	if !ok || s.Status != vo.JobStatusQueued {
		return false, nil
	}
	job := entity.RestoreJob(s)
	if err := job.MarkRunning(workerID, now); err != nil {
		return false, err
	}
	r.jobs[jobUUID] = job.Snapshot()
	return true, nil
}

func (r *memoryJobRepository) SaveJob(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[job.JobUUID()]
	if !ok {
		return fmt.Errorf("job %s not found", job.JobUUID())
	}
	if cur.Status.IsTerminal() {
		return repo.ErrJobTerminal
	}
	next := job.Snapshot()
	if cur.Progress > next.Progress {
		next.Progress = cur.Progress
	}
	next.ID = cur.ID
	r.jobs[job.JobUUID()] = next
	return nil
}

func (r *memoryJobRepository) TouchQueued(_ context.Context, jobUUID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[jobUUID]
	if !ok || s.Status != vo.JobStatusQueued {
		return false, nil
	}
	s.UpdatedAt = now
	r.jobs[jobUUID] = s
	return true, nil
}

func (r *memoryJobRepository) UpdateJobProgress(_ context.Context, jobUUID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[jobUUID]
	if !ok || s.Status.IsTerminal() || progress <= s.Progress {
		return nil
	}
	s.Progress = progress
	s.UpdatedAt = time.Now().UTC()
	r.jobs[jobUUID] = s
	return nil
}

func (r *memoryJobRepository) QueryJobsByStatus(_ context.Context, status vo.JobStatus, olderThan time.Time, limit int) ([]*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Job
	for _, s := range r.jobs {
		if s.Status != status {
			continue
		}
		if !olderThan.IsZero() && !s.UpdatedAt.Before(olderThan) {
			continue
		}
		out = append(out, entity.RestoreJob(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt().Before(out[j].UpdatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
