package http

import "media-pipeline-service/pkg/manager"

func init() {
	manager.RegisterControllerPlugin(&JobControllerPlugin{})
	manager.RegisterControllerPlugin(&FormatControllerPlugin{})
	manager.RegisterControllerPlugin(&WorkerControllerPlugin{})
}
