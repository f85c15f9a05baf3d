package worker

import "media-pipeline-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&PipelineWorkerComponentPlugin{})
}
