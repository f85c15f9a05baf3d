package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/quota"
	"media-pipeline-service/pkg/errno"
)

type funcExecutor struct {
	kind vo.StepKind
	fn   func(ctx context.Context, req port.StepRequest) (*port.StepResult, error)
}

func (e funcExecutor) Kind() vo.StepKind { return e.kind }

func (e funcExecutor) Execute(ctx context.Context, req port.StepRequest) (*port.StepResult, error) {
	return e.fn(ctx, req)
}

type mapRegistry map[vo.StepKind]port.StepExecutor

func (m mapRegistry) Executor(kind vo.StepKind) (port.StepExecutor, bool) {
	e, ok := m[kind]
	return e, ok
}

type fakeStorage struct{}

func (fakeStorage) UploadFile(context.Context, string, string, string) (int64, error) { return 0, nil }
func (fakeStorage) UploadStream(context.Context, io.Reader, int64, string, string) (int64, error) {
	return 0, nil
}
func (fakeStorage) DownloadFile(context.Context, string, string) error { return nil }
func (fakeStorage) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://blob.local/" + key + "?sig=1", nil
}

type recordingSink struct {
	mu     sync.Mutex
	values []int
}

func (s *recordingSink) SaveProgress(_ context.Context, _ *entity.Job, progress int) error {
	s.mu.Lock()
	s.values = append(s.values, progress)
	s.mu.Unlock()
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []port.JobEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e port.JobEvent) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func produce(kind vo.StepKind, fractions ...float64) port.StepExecutor {
	return funcExecutor{kind: kind, fn: func(_ context.Context, req port.StepRequest) (*port.StepResult, error) {
		for _, f := range fractions {
			req.ReportProgress(f)
		}
		key := "jobs/" + req.Job.JobUUID() + "/" + kind.String() + "/out"
		return &port.StepResult{Objects: []port.StoredObject{{ObjectKey: key, Filename: "out", SizeBytes: 42}}, Platform: "example"}, nil
	}}
}

type pipelineFixture struct {
	repo    repo.JobRepository
	svc     PipelineService
	quota   QuotaService
	sink    *recordingSink
	events  *recordingPublisher
	jobUUID string
	id      vo.Identity
}

func newPipelineFixture(t *testing.T, registry mapRegistry, timeout time.Duration, kinds ...vo.StepKind) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	jobRepo := persistence.NewMemoryJobRepository()
	quotaSvc := NewQuotaService(quota.NewMemoryLedger(), QuotaPolicy{GuestLimit: 1, AuthenticatedLimit: 10})
	sink := &recordingSink{}
	events := &recordingPublisher{}
	svc := NewPipelineService(jobRepo, quotaSvc, registry, NewArtifactService(fakeStorage{}, time.Hour), sink, events, PipelineOptions{
		TempDir:     t.TempDir(),
		StepTimeout: func(vo.StepKind) time.Duration { return timeout },
	})

	id := vo.NewGuestIdentity("g-1")
	job := entity.NewJob(id, "https://example.com/watch?v=1", "", kinds, vo.JobOptions{})
	if err := jobRepo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob error = %v", err)
	}
	return &pipelineFixture{repo: jobRepo, svc: svc, quota: quotaSvc, sink: sink, events: events, jobUUID: job.JobUUID(), id: id}
}

func (f *pipelineFixture) job(t *testing.T) *entity.Job {
	t.Helper()
	job, err := f.repo.GetJob(context.Background(), f.jobUUID)
	if err != nil || job == nil {
		t.Fatalf("GetJob = %v, %v", job, err)
	}
	return job
}

func (f *pipelineFixture) used(t *testing.T) int64 {
	t.Helper()
	state, err := f.quota.State(context.Background(), f.id)
	if err != nil {
		t.Fatalf("quota State error = %v", err)
	}
	return state.Used
}

// TestExecuteJobCompletes verifies a successful chain reaches 100, exposes artifacts and consumes quota once.
func TestExecuteJobCompletes(t *testing.T) {
	registry := mapRegistry{
		vo.StepKindFetch:     produce(vo.StepKindFetch, 0.25, 0.5, 0.4),
		vo.StepKindTranscode: produce(vo.StepKindTranscode, 0.3, 0.9),
	}
	f := newPipelineFixture(t, registry, time.Minute, vo.StepKindTranscode)

	claimed, err := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w1")
	if !claimed || err != nil {
		t.Fatalf("ExecuteJob = %v, %v", claimed, err)
	}
	job := f.job(t)
	if job.Status() != vo.JobStatusCompleted || job.Progress() != 100 {
		t.Fatalf("job = %s/%d, want completed/100", job.Status(), job.Progress())
	}
	artifacts := job.VisibleArtifacts()
	if len(artifacts) != 2 || artifacts[0].Kind != "original" || artifacts[1].Kind != "processed:transcode" {
		t.Fatalf("artifacts = %+v", artifacts)
	}
	if !strings.HasPrefix(artifacts[1].URL, "https://blob.local/") || artifacts[1].ExpiresAt.IsZero() {
		t.Fatalf("artifact url/expiry = %q %s", artifacts[1].URL, artifacts[1].ExpiresAt)
	}
	if job.Platform() != "example" {
		t.Fatalf("platform = %q", job.Platform())
	}
	if got := f.used(t); got != 1 {
		t.Fatalf("quota used = %d, want 1", got)
	}
	if state, _ := f.quota.State(context.Background(), f.id); state.BytesProcessed != 84 {
		t.Fatalf("bytes processed = %d, want 84", state.BytesProcessed)
	}

	last := -1
	for _, p := range f.sink.values {
		if p <= last || p >= 100 {
			t.Fatalf("progress sequence %v is not strictly increasing below 100", f.sink.values)
		}
		last = p
	}
	want := []int{12, 25, 65, 95}
	if len(f.sink.values) != len(want) {
		t.Fatalf("progress sequence = %v, want %v", f.sink.values, want)
	}
	for i := range want {
		if f.sink.values[i] != want[i] {
			t.Fatalf("progress sequence = %v, want %v", f.sink.values, want)
		}
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != port.JobEventCompleted {
		t.Fatalf("events = %+v", f.events.events)
	}
}

// TestExecuteJobFailureFreezesProgress verifies a failing step stops the chain without consuming quota.
func TestExecuteJobFailureFreezesProgress(t *testing.T) {
	var summarized bool
	registry := mapRegistry{
		vo.StepKindFetch: produce(vo.StepKindFetch, 1),
		vo.StepKindTranscode: funcExecutor{kind: vo.StepKindTranscode, fn: func(_ context.Context, req port.StepRequest) (*port.StepResult, error) {
			req.ReportProgress(0.5)
			return nil, errors.New("ffmpeg exited with status 1")
		}},
		vo.StepKindSummarize: funcExecutor{kind: vo.StepKindSummarize, fn: func(context.Context, port.StepRequest) (*port.StepResult, error) {
			summarized = true
			return nil, nil
		}},
	}
	f := newPipelineFixture(t, registry, time.Minute, vo.StepKindTranscode, vo.StepKindSummarize)

	claimed, err := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w1")
	if !claimed || !errors.Is(err, errno.ErrStepFailure) {
		t.Fatalf("ExecuteJob = %v, %v, want StepFailure", claimed, err)
	}
	if summarized {
		t.Fatalf("step after the failure was executed")
	}
	job := f.job(t)
	if job.Status() != vo.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status())
	}
	if job.Progress() != 49 {
		t.Fatalf("progress = %d, want frozen at 49", job.Progress())
	}
	if !strings.Contains(job.FailureReason(), "transcode") || !strings.Contains(job.FailureReason(), "status 1") {
		t.Fatalf("failure reason = %q", job.FailureReason())
	}
	if len(job.VisibleArtifacts()) != 0 {
		t.Fatalf("failed job exposes %d artifacts", len(job.VisibleArtifacts()))
	}
	if got := f.used(t); got != 0 {
		t.Fatalf("quota used = %d, want 0", got)
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != port.JobEventFailed {
		t.Fatalf("events = %+v", f.events.events)
	}
}

// TestExecuteJobStepTimeout verifies a step exceeding its budget fails the job.
func TestExecuteJobStepTimeout(t *testing.T) {
	registry := mapRegistry{
		vo.StepKindFetch: funcExecutor{kind: vo.StepKindFetch, fn: func(ctx context.Context, _ port.StepRequest) (*port.StepResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}
	f := newPipelineFixture(t, registry, 20*time.Millisecond)

	_, err := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w1")
	if !errors.Is(err, errno.ErrStepFailure) {
		t.Fatalf("ExecuteJob error = %v, want StepFailure", err)
	}
	job := f.job(t)
	if job.Status() != vo.JobStatusFailed || !strings.Contains(job.FailureReason(), "timed out") {
		t.Fatalf("job = %s %q", job.Status(), job.FailureReason())
	}
}

// TestExecuteJobMissingExecutor verifies an unavailable backend is a step failure at run time.
func TestExecuteJobMissingExecutor(t *testing.T) {
	f := newPipelineFixture(t, mapRegistry{vo.StepKindFetch: produce(vo.StepKindFetch)}, time.Minute, vo.StepKindTranscribe)

	_, err := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w1")
	if !errors.Is(err, errno.ErrStepFailure) {
		t.Fatalf("ExecuteJob error = %v, want StepFailure", err)
	}
	if job := f.job(t); job.Step(1).Status != vo.JobStatusFailed || job.Progress() != 50 {
		t.Fatalf("step = %+v progress = %d", job.Step(1), job.Progress())
	}
}

// TestExecuteJobClaimedOnce verifies a second worker cannot run the same job.
func TestExecuteJobClaimedOnce(t *testing.T) {
	var runs int
	var mu sync.Mutex
	registry := mapRegistry{vo.StepKindFetch: funcExecutor{kind: vo.StepKindFetch, fn: func(_ context.Context, req port.StepRequest) (*port.StepResult, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return &port.StepResult{Objects: []port.StoredObject{{ObjectKey: "k", Filename: "f"}}}, nil
	}}}
	f := newPipelineFixture(t, registry, time.Minute)

	var wg sync.WaitGroup
	claims := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, _ := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w")
			claims <- ok
		}(i)
	}
	wg.Wait()
	close(claims)
	won := 0
	for ok := range claims {
		if ok {
			won++
		}
	}
	if won != 1 || runs != 1 {
		t.Fatalf("claims won = %d runs = %d, want 1 and 1", won, runs)
	}
}

// TestExecuteJobUnknown verifies an unknown job is not claimed.
func TestExecuteJobUnknown(t *testing.T) {
	f := newPipelineFixture(t, mapRegistry{}, time.Minute)
	claimed, err := f.svc.ExecuteJob(context.Background(), "missing", "w1")
	if claimed || err != nil {
		t.Fatalf("ExecuteJob = %v, %v, want false, nil", claimed, err)
	}
}

// TestExecuteJobYieldsToExternalFailure verifies a job failed by another writer mid-run is neither
// completed nor counted against quota.
func TestExecuteJobYieldsToExternalFailure(t *testing.T) {
	var f *pipelineFixture
	registry := mapRegistry{vo.StepKindFetch: funcExecutor{kind: vo.StepKindFetch, fn: func(ctx context.Context, req port.StepRequest) (*port.StepResult, error) {
		stored, err := f.repo.GetJob(ctx, req.Job.JobUUID())
		if err != nil || stored == nil {
			return nil, errors.New("job not found")
		}
		_ = stored.Fail(0, "fetch step failed: worker stopped responding", time.Now().UTC())
		if err := f.repo.SaveJob(ctx, stored); err != nil {
			return nil, err
		}
		return &port.StepResult{Objects: []port.StoredObject{{ObjectKey: "k", Filename: "f", SizeBytes: 10}}}, nil
	}}}
	f = newPipelineFixture(t, registry, time.Minute)

	claimed, err := f.svc.ExecuteJob(context.Background(), f.jobUUID, "w1")
	if !claimed || !errors.Is(err, errno.ErrStepFailure) {
		t.Fatalf("ExecuteJob = %v, %v, want claimed StepFailure", claimed, err)
	}
	job := f.job(t)
	if job.Status() != vo.JobStatusFailed || !strings.Contains(job.FailureReason(), "stopped responding") {
		t.Fatalf("job = %s %q, want the external failure kept", job.Status(), job.FailureReason())
	}
	if got := f.used(t); got != 0 {
		t.Fatalf("quota used = %d, want 0", got)
	}
	for _, e := range f.events.events {
		if e.Type == port.JobEventCompleted {
			t.Fatalf("completed event published for a failed job: %+v", f.events.events)
		}
	}
}

type unreadableRepo struct {
	repo.JobRepository
}

func (unreadableRepo) GetJob(context.Context, string) (*entity.Job, error) {
	return nil, errors.New("connection reset")
}

// TestExecuteJobReadErrorLeavesJobQueued verifies a failed read does not strand a claimed job.
func TestExecuteJobReadErrorLeavesJobQueued(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryJobRepository()
	job := entity.NewJob(vo.NewGuestIdentity("g-1"), "https://example.com/watch?v=1", "", nil, vo.JobOptions{})
	_ = store.CreateJob(ctx, job)
	quotaSvc := NewQuotaService(quota.NewMemoryLedger(), QuotaPolicy{GuestLimit: 1})
	svc := NewPipelineService(unreadableRepo{store}, quotaSvc, mapRegistry{}, NewArtifactService(fakeStorage{}, time.Hour), nil, nil, PipelineOptions{TempDir: t.TempDir()})

	claimed, err := svc.ExecuteJob(ctx, job.JobUUID(), "w1")
	if claimed || !errors.Is(err, errno.ErrDatabase) {
		t.Fatalf("ExecuteJob = %v, %v, want false, database error", claimed, err)
	}
	got, _ := store.GetJob(ctx, job.JobUUID())
	if got.Status() != vo.JobStatusQueued {
		t.Fatalf("status = %s, want queued", got.Status())
	}
}
