package component

import "media-pipeline-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&JobSubmissionConsumerPlugin{})
}
