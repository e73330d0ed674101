package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"unkahi/backend/internal/service"
)

// 上下文键
const (
	ContextKeyHandle     = "handle"
	ContextKeyAccessCode = "accessCode"
)

// AccessAuth 访问凭证认证中间件
type AccessAuth struct {
	inbox *service.InboxService
	log   *zap.Logger
}

// NewAccessAuth 创建访问凭证认证中间件
func NewAccessAuth(inbox *service.InboxService, log *zap.Logger) *AccessAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessAuth{
		inbox: inbox,
		log:   log,
	}
}

// RequireAccessCode 要求有效的访问凭证。
// 凭证无效和过期统一返回 401，不向调用方泄露两者的差别。
func (aa *AccessAuth) RequireAccessCode() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := aa.extractCode(c)
		if code == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "access code required",
			})
			c.Abort()
			return
		}

		handle, err := aa.inbox.Resolve(code)
		if err != nil {
			aa.log.Warn("access code rejected",
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid access code",
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyHandle, handle)
		c.Set(ContextKeyAccessCode, code)
		c.Next()
	}
}

// extractCode 从多个来源提取访问凭证
func (aa *AccessAuth) extractCode(c *gin.Context) string {
	// 1. 尝试从 Authorization header 提取 (Bearer token格式)
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 尝试从 X-Access-Code header 提取
	code := c.GetHeader("X-Access-Code")
	if code != "" {
		return code
	}

	// 3. 尝试从 query parameter 提取
	code = c.Query("code")
	if code != "" {
		return code
	}

	return ""
}
