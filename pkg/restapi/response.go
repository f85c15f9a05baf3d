package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
)

// Response 统一响应结构，Error 为错误分类标签
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Accepted 异步受理响应
func Accepted(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusAccepted, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Failed 失败响应，根据错误码选择HTTP状态码
func Failed(ctx *gin.Context, err error) {
	code, message := errno.Decode(err)
	status := errno.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", map[string]interface{}{
			"path":       ctx.FullPath(),
			"code":       code.Code,
			"error":      message,
			"request_id": ctx.GetString("request_id"),
		})
	}
	tag := code.Tag
	if tag == "" {
		tag = errno.TagInternal
	}
	ctx.AbortWithStatusJSON(status, Response{
		Code:    code.Code,
		Message: message,
		Error:   tag,
	})
}
