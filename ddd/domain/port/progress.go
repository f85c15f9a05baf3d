package port

import (
	"context"

	"media-pipeline-service/ddd/domain/entity"
)

// ProgressSink persists or forwards job progress updates.
type ProgressSink interface {
	SaveProgress(ctx context.Context, job *entity.Job, progress int) error
}
