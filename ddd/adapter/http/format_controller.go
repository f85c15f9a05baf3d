package http

import (
	"sync"

	"github.com/gin-gonic/gin"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/restapi"
)

var (
	formatControllerOnce      sync.Once
	singletonFormatController FormatController
)

type FormatControllerPlugin struct {
}

func (p *FormatControllerPlugin) Name() string {
	return "formatControllerPlugin"
}

func (p *FormatControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	formatControllerOnce.Do(func() {
		singletonFormatController = NewFormatController(app.DefaultFormatApp())
	})
	assert.NotNil(singletonFormatController)
	return singletonFormatController
}

type FormatController interface {
	manager.Controller
}

type formatControllerImpl struct {
	formatApp app.FormatApp
}

// NewFormatController 创建格式查询控制器
func NewFormatController(formatApp app.FormatApp) FormatController {
	return &formatControllerImpl{formatApp: formatApp}
}

func (c *formatControllerImpl) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/formats", c.ResolveFormats)
	group.GET("/formats", c.ResolveFormats)
}

// ResolveFormats 支持 JSON 请求体或 ?source= 查询参数
func (c *formatControllerImpl) ResolveFormats(ctx *gin.Context) {
	var req cqe.ResolveFormatsReq
	var err error
	if ctx.Request.Method == "GET" {
		err = ctx.ShouldBindQuery(&req)
	} else {
		err = ctx.ShouldBindJSON(&req)
	}
	if err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrValidation, err))
		return
	}
	resp, err := c.formatApp.ResolveFormats(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}
