package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/po"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "media.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(po.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func repositories(t *testing.T) map[string]repo.JobRepository {
	return map[string]repo.JobRepository{
		"memory": NewMemoryJobRepository(),
		"sqlite": NewJobRepositoryWith(openSQLite(t)),
	}
}

func newTestJob() *entity.Job {
	return entity.NewJob(vo.NewAuthenticatedIdentity("u-1", "pro"), "https://example.com/v", "720p",
		[]vo.StepKind{vo.StepKindTranscode}, vo.JobOptions{OutputFormat: "mp4"})
}

// TestJobRoundTrip verifies every field survives storage.
func TestJobRoundTrip(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newTestJob()
			if err := r.CreateJob(ctx, job); err != nil {
				t.Fatalf("CreateJob error = %v", err)
			}
			if job.ID() == 0 {
				t.Fatalf("CreateJob did not assign an id")
			}
			got, err := r.GetJob(ctx, job.JobUUID())
			if err != nil || got == nil {
				t.Fatalf("GetJob = %v, %v", got, err)
			}
			if got.Status() != vo.JobStatusQueued || got.Quality() != "720p" || got.StepCount() != 2 {
				t.Fatalf("job = %s %s %d", got.Status(), got.Quality(), got.StepCount())
			}
			if got.Identity() != job.Identity() || got.Options().OutputFormat != "mp4" {
				t.Fatalf("identity = %+v options = %+v", got.Identity(), got.Options())
			}
			if got.Step(0).Kind != vo.StepKindFetch || got.Step(0).InputRef != "https://example.com/v" {
				t.Fatalf("step 0 = %+v", got.Step(0))
			}

			missing, err := r.GetJob(ctx, "no-such-job")
			if err != nil || missing != nil {
				t.Fatalf("GetJob(missing) = %v, %v, want nil, nil", missing, err)
			}
		})
	}
}

// TestClaimJobOnce verifies a queued job can be claimed a single time.
func TestClaimJobOnce(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newTestJob()
			_ = r.CreateJob(ctx, job)

			now := time.Now().UTC()
			first, err := r.ClaimJob(ctx, job.JobUUID(), "w1", now)
			if err != nil || !first {
				t.Fatalf("first ClaimJob = %v, %v", first, err)
			}
			second, err := r.ClaimJob(ctx, job.JobUUID(), "w2", now)
			if err != nil || second {
				t.Fatalf("second ClaimJob = %v, %v, want false", second, err)
			}
			got, _ := r.GetJob(ctx, job.JobUUID())
			if got.Status() != vo.JobStatusRunning || got.WorkerID() != "w1" || got.StartedAt() == nil {
				t.Fatalf("claimed job = %s worker=%s", got.Status(), got.WorkerID())
			}
		})
	}
}

// TestMemoryClaimConcurrent verifies exactly one concurrent claimer wins.
func TestMemoryClaimConcurrent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryJobRepository()
	job := newTestJob()
	_ = r.CreateJob(ctx, job)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := r.ClaimJob(ctx, job.JobUUID(), "w", time.Now())
			if ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("claims won = %d, want 1", won)
	}
}

// TestSaveJobKeepsProgressAndTerminalState verifies stale writes cannot regress a job.
func TestSaveJobKeepsProgressAndTerminalState(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := newTestJob()
			_ = r.CreateJob(ctx, job)
			now := time.Now().UTC()
			_, _ = r.ClaimJob(ctx, job.JobUUID(), "w1", now)
			running, _ := r.GetJob(ctx, job.JobUUID())
			stale := running.Clone()

			_ = running.StartStep(0, now)
			running.UpdateStepProgress(0, 0.8, now)
			if err := r.SaveJob(ctx, running); err != nil {
				t.Fatalf("SaveJob error = %v", err)
			}
			if err := r.UpdateJobProgress(ctx, job.JobUUID(), 10); err != nil {
				t.Fatalf("UpdateJobProgress error = %v", err)
			}
			if err := r.SaveJob(ctx, stale); err != nil {
				t.Fatalf("stale SaveJob error = %v", err)
			}
			got, _ := r.GetJob(ctx, job.JobUUID())
			if got.Progress() != 40 {
				t.Fatalf("progress = %d, want 40", got.Progress())
			}

			_ = running.Fail(0, "fetch step failed: 403", now)
			if err := r.SaveJob(ctx, running); err != nil {
				t.Fatalf("SaveJob failed job error = %v", err)
			}
			_ = r.UpdateJobProgress(ctx, job.JobUUID(), 90)
			if err := r.SaveJob(ctx, stale); !errors.Is(err, repo.ErrJobTerminal) {
				t.Fatalf("SaveJob over terminal row error = %v, want ErrJobTerminal", err)
			}
			got, _ = r.GetJob(ctx, job.JobUUID())
			if got.Status() != vo.JobStatusFailed || got.Progress() != 40 || got.FailureReason() != "fetch step failed: 403" {
				t.Fatalf("failed job = %s/%d %q", got.Status(), got.Progress(), got.FailureReason())
			}
		})
	}
}

// TestTouchQueuedAgesOnlyQueuedJobs verifies a touched job leaves the stale-queued window and running jobs are not touched.
func TestTouchQueuedAgesOnlyQueuedJobs(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			queued, running := newTestJob(), newTestJob()
			_ = r.CreateJob(ctx, queued)
			_ = r.CreateJob(ctx, running)
			_, _ = r.ClaimJob(ctx, running.JobUUID(), "w1", time.Now().UTC())

			later := time.Now().UTC().Add(time.Hour)
			if ok, err := r.TouchQueued(ctx, queued.JobUUID(), later); err != nil || !ok {
				t.Fatalf("TouchQueued(queued) = %v, %v, want true", ok, err)
			}
			if ok, err := r.TouchQueued(ctx, running.JobUUID(), later); err != nil || ok {
				t.Fatalf("TouchQueued(running) = %v, %v, want false", ok, err)
			}
			stale, err := r.QueryJobsByStatus(ctx, vo.JobStatusQueued, later.Add(-time.Minute), 10)
			if err != nil || len(stale) != 0 {
				t.Fatalf("stale queued after touch = %d, %v, want 0", len(stale), err)
			}
		})
	}
}

// TestQueryJobsByStatus verifies status and age filtering.
func TestQueryJobsByStatus(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b := newTestJob(), newTestJob()
			_ = r.CreateJob(ctx, a)
			_ = r.CreateJob(ctx, b)
			_, _ = r.ClaimJob(ctx, b.JobUUID(), "w1", time.Now().UTC())

			queued, err := r.QueryJobsByStatus(ctx, vo.JobStatusQueued, time.Time{}, 10)
			if err != nil || len(queued) != 1 || queued[0].JobUUID() != a.JobUUID() {
				t.Fatalf("queued = %v, %v", queued, err)
			}
			old, err := r.QueryJobsByStatus(ctx, vo.JobStatusRunning, time.Now().UTC().Add(-time.Hour), 10)
			if err != nil || len(old) != 0 {
				t.Fatalf("running older than an hour = %d, %v", len(old), err)
			}
		})
	}
}
