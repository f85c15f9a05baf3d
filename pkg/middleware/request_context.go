package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"media-pipeline-service/pkg/logger"
)

const (
	requestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestContextMiddleware 注入 request_id 并在请求结束后记录访问日志，
// 需注册在 IdentityMiddleware 之前，日志中的身份在处理完成后读取
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set(RequestIDHeader, reqID)

		c.Next()

		fields := map[string]interface{}{
			"request_id": reqID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if _, ok := c.Get(identityKey); ok {
			fields["identity"] = IdentityFrom(c).QuotaKey()
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		if c.Writer.Status() >= 500 {
			logger.Error("HTTP request", fields)
			return
		}
		logger.Debug("HTTP request", fields)
	}
}

// RequestID 读取当前请求的 request_id
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
