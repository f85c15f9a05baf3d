package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/logger"
)

const (
	identityKey      = "identity"
	GuestTokenHeader = "X-Guest-Token"
)

// IdentityMiddleware 解析请求方身份：有效的 Bearer 令牌为登录用户或匿名访客，
// 缺失或无效时按 X-Guest-Token 或客户端IP识别访客
func IdentityMiddleware(verifier gateway.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ResolveIdentity(verifier, c.GetHeader("Authorization"), c.GetHeader(GuestTokenHeader), ClientIP(c.Request))
		c.Set(identityKey, id)
		c.Next()
	}
}

// ResolveIdentity 供 HTTP、gRPC 与 Kafka 入口共用
func ResolveIdentity(verifier gateway.IdentityVerifier, authorization, guestToken, fallback string) vo.Identity {
	if token := BearerToken(authorization); token != "" && verifier != nil {
		id, err := verifier.Verify(token)
		if err == nil {
			return id
		}
		logger.Debugf("credential rejected, treating caller as guest error=%v", err)
	}
	if g := strings.TrimSpace(guestToken); g != "" {
		return vo.NewGuestIdentity(g)
	}
	return vo.NewGuestIdentity(fallback)
}

// BearerToken 提取 Authorization 头中的令牌
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// IdentityFrom 读取中间件写入的身份
func IdentityFrom(c *gin.Context) vo.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(vo.Identity); ok {
			return id
		}
	}
	return vo.NewGuestIdentity(ClientIP(c.Request))
}

// ClientIP 优先取 X-Forwarded-For 的第一个地址
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
