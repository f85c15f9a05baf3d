package http

import (
	"sync"

	"github.com/gin-gonic/gin"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/middleware"
	"media-pipeline-service/pkg/restapi"
)

var (
	jobControllerOnce      sync.Once
	singletonJobController JobController
)

type JobControllerPlugin struct {
}

func (p *JobControllerPlugin) Name() string {
	return "jobControllerPlugin"
}

func (p *JobControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	jobControllerOnce.Do(func() {
		singletonJobController = NewJobController(app.DefaultJobApp())
	})
	assert.NotNil(singletonJobController)
	return singletonJobController
}

type JobController interface {
	manager.Controller
}

type jobControllerImpl struct {
	jobApp app.JobApp
}

// NewJobController 创建作业控制器
func NewJobController(jobApp app.JobApp) JobController {
	return &jobControllerImpl{jobApp: jobApp}
}

func (c *jobControllerImpl) RegisterRoutes(group *gin.RouterGroup) {
	jobs := group.Group("/jobs")
	{
		jobs.POST("", c.SubmitJob)
		jobs.GET("/:job_id", c.GetJobStatus)
	}
	group.GET("/quota", c.GetQuota)
}

// SubmitJob 提交作业，立即返回作业ID
func (c *jobControllerImpl) SubmitJob(ctx *gin.Context) {
	var req cqe.SubmitJobReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrValidation, err))
		return
	}
	resp, err := c.jobApp.SubmitJob(ctx.Request.Context(), middleware.IdentityFrom(ctx), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Accepted(ctx, resp)
}

// GetJobStatus 查询作业状态
func (c *jobControllerImpl) GetJobStatus(ctx *gin.Context) {
	var req cqe.GetJobReq
	if err := ctx.ShouldBindUri(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrValidation, err))
		return
	}
	resp, err := c.jobApp.GetJobStatus(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// GetQuota 当前身份的当日配额
func (c *jobControllerImpl) GetQuota(ctx *gin.Context) {
	resp, err := c.jobApp.RemainingQuota(ctx.Request.Context(), middleware.IdentityFrom(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}
