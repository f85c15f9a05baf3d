package port

import (
	"context"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/vo"
)

// ProgressCallback is invoked by executors to report step-local progress in [0,1].
type ProgressCallback func(fraction float64)

// PhaseCallback lets a step surface a transient job sub-state such as resolving-formats.
type PhaseCallback func(status vo.JobStatus)

// StepRequest carries everything one chain step needs to run.
type StepRequest struct {
	Job      *entity.Job
	Step     entity.ChainStep
	InputRef string
	WorkDir  string
	Progress ProgressCallback
	Phase    PhaseCallback
}

// ReportProgress is nil-safe.
func (r StepRequest) ReportProgress(fraction float64) {
	if r.Progress != nil {
		r.Progress(fraction)
	}
}

// EnterPhase is nil-safe.
func (r StepRequest) EnterPhase(status vo.JobStatus) {
	if r.Phase != nil {
		r.Phase(status)
	}
}

// StoredObject describes a file a step has written to the blob store.
type StoredObject struct {
	ObjectKey   string
	Filename    string
	SizeBytes   int64
	ContentType string
}

// StepResult lists produced objects; the first one is the primary output fed to the next step.
type StepResult struct {
	Objects  []StoredObject
	Platform string
}

// StepExecutor runs one kind of chain step against an external backend.
type StepExecutor interface {
	Kind() vo.StepKind
	Execute(ctx context.Context, req StepRequest) (*StepResult, error)
}

// StepExecutorRegistry resolves the executor for a step kind.
type StepExecutorRegistry interface {
	Executor(kind vo.StepKind) (StepExecutor, bool)
}
