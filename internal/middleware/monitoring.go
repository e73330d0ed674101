package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"unkahi/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, logger *zap.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		logger:  logger,
	}
}

// HTTPMetrics HTTP 指标中间件
func (mm *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := c.Request.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		c.Next()

		duration := time.Since(start)
		statusCode := strconv.Itoa(c.Writer.Status())
		responseSize := int64(c.Writer.Size())

		mm.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			statusCode,
			duration,
			requestSize,
			responseSize,
		)

		if c.Writer.Status() >= 400 {
			mm.metrics.RecordError("http_error", "http")
		}
	}
}

// PanicRecovery Panic 恢复中间件
func (mm *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				mm.metrics.RecordPanic()

				mm.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("ip", c.ClientIP()),
				)

				c.JSON(500, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// BusinessMetrics 业务指标中间件
func (mm *MonitoringMiddleware) BusinessMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// 根据路径记录业务指标
		switch c.FullPath() {
		case "/v1/identities":
			if c.Request.Method == "POST" && c.Writer.Status() < 400 {
				mm.metrics.RecordIdentityClaimed()
			}
		case "/v1/identities/:handle/access-codes":
			if c.Request.Method == "POST" && c.Writer.Status() < 400 {
				mm.metrics.RecordAccessCodeIssued()
			}
		case "/v1/identities/:handle/messages":
			if c.Request.Method == "POST" && c.Writer.Status() < 400 {
				mm.metrics.RecordMessageReceived()
			}
		case "/v1/inbox/messages/:messageId/read":
			if c.Request.Method == "POST" && c.Writer.Status() < 400 {
				mm.metrics.RecordMessageRead()
			}
		case "/v1/inbox/messages/:messageId":
			if c.Request.Method == "DELETE" && c.Writer.Status() < 400 {
				mm.metrics.RecordMessageDeleted()
			}
		case "/v1/inbox":
			if c.Writer.Status() == 401 {
				mm.metrics.RecordAccessDenied()
			}
		}
	}
}
