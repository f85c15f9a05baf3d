package progress

import (
	"context"
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/pkg/logger"
)

// staleAfter 超过该时长没有进度的作业记录会被清理
const staleAfter = time.Hour

type flushState struct {
	progress int
	at       time.Time
}

// DBSink 节流地把执行器进度写入作业仓储，仓储本身保证进度只增不减
type DBSink struct {
	repo     repo.JobRepository
	minDelta int
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]flushState
}

func NewDBSink(r repo.JobRepository, minDelta int, interval time.Duration) port.ProgressSink {
	return newDBSink(r, minDelta, interval, time.Now)
}

func newDBSink(r repo.JobRepository, minDelta int, interval time.Duration, now func() time.Time) *DBSink {
	if minDelta <= 0 {
		minDelta = 1
	}
	return &DBSink{
		repo:     r,
		minDelta: minDelta,
		interval: interval,
		now:      now,
		last:     make(map[string]flushState),
	}
}

func (s *DBSink) SaveProgress(ctx context.Context, job *entity.Job, progress int) error {
	if s.repo == nil || job == nil {
		return nil
	}
	if !s.due(job.JobUUID(), progress) {
		return nil
	}
	if err := s.repo.UpdateJobProgress(ctx, job.JobUUID(), progress); err != nil {
		return err
	}
	logger.Debugf("progress flushed job_uuid=%s progress=%d", job.JobUUID(), progress)
	return nil
}

// due 判断本次进度是否需要落库并记录
func (s *DBSink) due(jobUUID string, progress int) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.last[jobUUID]
	if seen {
		if progress <= prev.progress {
			return false
		}
		// 99 是完成前的最后一档，总是写入
		if progress < 99 && progress-prev.progress < s.minDelta && now.Sub(prev.at) < s.interval {
			return false
		}
	}
	s.last[jobUUID] = flushState{progress: progress, at: now}
	if progress >= 99 {
		delete(s.last, jobUUID)
	}
	s.prune(now)
	return true
}

func (s *DBSink) prune(now time.Time) {
	for id, st := range s.last {
		if now.Sub(st.at) > staleAfter {
			delete(s.last, id)
		}
	}
}
