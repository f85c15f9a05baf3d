package port

import (
	"context"
	"time"
)

// JobEvent is emitted when a job reaches a terminal status.
type JobEvent struct {
	Type          string    `json:"type"`
	JobUUID       string    `json:"job_uuid"`
	Identity      string    `json:"identity"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Artifacts     int       `json:"artifacts"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	JobEventCompleted = "job.completed"
	JobEventFailed    = "job.failed"
)

// JobEventPublisher forwards terminal job events to downstream consumers.
type JobEventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// NopEventPublisher drops events.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, JobEvent) error { return nil }
