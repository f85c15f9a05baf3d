package progress

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
)

type progressRecorder struct {
	repo.JobRepository
	writes []int
	err    error
}

func (r *progressRecorder) UpdateJobProgress(_ context.Context, _ string, progress int) error {
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, progress)
	return nil
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func newJob() *entity.Job {
	return entity.NewJob(vo.NewGuestIdentity("g1"), "https://example.com/v", "", []vo.StepKind{vo.StepKindFetch}, vo.JobOptions{})
}

// TestDBSinkThrottles verifies small increments are coalesced until the delta or interval is reached.
func TestDBSinkThrottles(t *testing.T) {
	rec := &progressRecorder{}
	clock := &stepClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	sink := newDBSink(rec, 5, 2*time.Second, clock.now)
	job := newJob()
	ctx := context.Background()

	for _, p := range []int{1, 2, 3, 6, 7} {
		if err := sink.SaveProgress(ctx, job, p); err != nil {
			t.Fatalf("SaveProgress(%d) error = %v", p, err)
		}
	}
	clock.t = clock.t.Add(3 * time.Second)
	_ = sink.SaveProgress(ctx, job, 8)
	_ = sink.SaveProgress(ctx, job, 8)
	_ = sink.SaveProgress(ctx, job, 99)

	want := []int{1, 6, 8, 99}
	if !reflect.DeepEqual(rec.writes, want) {
		t.Fatalf("writes = %v, want %v", rec.writes, want)
	}
	if len(sink.last) != 0 {
		t.Fatalf("tracked jobs = %d, want 0 after final progress", len(sink.last))
	}
}

// TestDBSinkPrunesStaleJobs verifies abandoned jobs do not accumulate.
func TestDBSinkPrunesStaleJobs(t *testing.T) {
	rec := &progressRecorder{}
	clock := &stepClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	sink := newDBSink(rec, 5, time.Second, clock.now)
	ctx := context.Background()

	_ = sink.SaveProgress(ctx, newJob(), 10)
	clock.t = clock.t.Add(2 * time.Hour)
	_ = sink.SaveProgress(ctx, newJob(), 10)
	if len(sink.last) != 1 {
		t.Fatalf("tracked jobs = %d, want 1", len(sink.last))
	}
}

// TestDBSinkReturnsRepositoryError verifies write failures surface to the caller.
func TestDBSinkReturnsRepositoryError(t *testing.T) {
	rec := &progressRecorder{err: errors.New("db down")}
	sink := NewDBSink(rec, 5, time.Second)
	if err := sink.SaveProgress(context.Background(), newJob(), 10); err == nil {
		t.Fatalf("SaveProgress error = nil, want db down")
	}
	if err := NewDBSink(nil, 5, time.Second).SaveProgress(context.Background(), newJob(), 10); err != nil {
		t.Fatalf("nil repo SaveProgress error = %v, want nil", err)
	}
}
