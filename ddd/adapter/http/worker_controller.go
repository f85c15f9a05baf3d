package http

import (
	"github.com/gin-gonic/gin"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/restapi"
)

type WorkerControllerPlugin struct {
}

func (p *WorkerControllerPlugin) Name() string {
	return "workerControllerPlugin"
}

func (p *WorkerControllerPlugin) MustCreateController() manager.Controller {
	return NewWorkerController(app.DefaultWorkerApp())
}

// WorkerController worker 运行统计
type WorkerController struct {
	workerApp app.WorkerApp
}

// NewWorkerController 创建Worker控制器
func NewWorkerController(workerApp app.WorkerApp) *WorkerController {
	return &WorkerController{workerApp: workerApp}
}

func (c *WorkerController) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/workers/stats", c.GetWorkerStats)
}

// GetWorkerStats 获取Worker统计
func (c *WorkerController) GetWorkerStats(ctx *gin.Context) {
	resp, err := c.workerApp.GetWorkerStats(ctx.Request.Context())
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}
