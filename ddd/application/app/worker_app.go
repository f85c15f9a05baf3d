package app

import (
	"context"
	"sort"

	"media-pipeline-service/ddd/application/dto"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/ddd/infrastructure/worker"
)

// WorkerApp worker 运行统计
type WorkerApp interface {
	GetWorkerStats(ctx context.Context) (*dto.WorkerStatsListDTO, error)
}

type workerAppImpl struct {
	manager  *worker.WorkerManager
	jobQueue queue.JobQueue
}

// NewWorkerApp 创建 worker 应用服务，jobQueue 可为 nil
func NewWorkerApp(manager *worker.WorkerManager, jobQueue queue.JobQueue) WorkerApp {
	return &workerAppImpl{manager: manager, jobQueue: jobQueue}
}

// DefaultWorkerApp 读取进程内 worker 管理器
func DefaultWorkerApp() WorkerApp {
	return NewWorkerApp(worker.DefaultWorkerManager(), queue.DefaultJobQueue())
}

func (a *workerAppImpl) GetWorkerStats(ctx context.Context) (*dto.WorkerStatsListDTO, error) {
	out := &dto.WorkerStatsListDTO{Workers: make([]dto.WorkerStatsDTO, 0)}
	running := a.manager.Running()
	for id, s := range a.manager.GetAllStats() {
		item := dto.WorkerStatsDTO{
			WorkerID:         id,
			Running:          running[id],
			Concurrency:      s.Concurrency,
			ProcessedTasks:   int64(s.ProcessedTasks),
			SuccessfulTasks:  int64(s.SuccessfulTasks),
			FailedTasks:      int64(s.FailedTasks),
			SkippedTasks:     int64(s.SkippedTasks),
			RequeuedTasks:    int64(s.RequeuedTasks),
			CurrentlyRunning: s.CurrentlyRunning,
		}
		if !s.StartTime.IsZero() {
			item.StartTime = dto.FormatTime(s.StartTime)
		}
		if !s.LastTaskTime.IsZero() {
			item.LastTaskTime = dto.FormatTime(s.LastTaskTime)
		}
		out.Workers = append(out.Workers, item)
	}
	sort.Slice(out.Workers, func(i, j int) bool { return out.Workers[i].WorkerID < out.Workers[j].WorkerID })
	if a.jobQueue != nil {
		out.QueueSize = a.jobQueue.Size()
	}
	return out, nil
}
