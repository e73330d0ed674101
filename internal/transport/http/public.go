package httptransport

import (
	"github.com/gin-gonic/gin"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/service"
)

// PublicHandler 公开API处理器（无需认证）
type PublicHandler struct {
	cfg   *config.Config
	stats *service.StatsService
}

// NewPublicHandler 创建公开API处理器
func NewPublicHandler(cfg *config.Config, stats *service.StatsService) *PublicHandler {
	return &PublicHandler{
		cfg:   cfg,
		stats: stats,
	}
}

// GetSystemConfig godoc
// @Summary 获取系统配置
// @Description 获取前端需要的公开系统配置（公开接口，无需认证）
// @Tags Public
// @Produce json
// @Success 200 {object} Response{data=object{shareBaseUrl=string,maxMessageLength=int,codeTtlDays=int}}
// @Router /v1/public/config [get]
func (h *PublicHandler) GetSystemConfig(c *gin.Context) {
	Success(c, gin.H{
		"shareBaseUrl":     h.cfg.Share.BaseURL,
		"maxMessageLength": domain.MaxMessageLength,
		"codeTtlDays":      int(h.cfg.Share.CodeTTL.Hours() / 24),
	})
}

// GetStatistics godoc
// @Summary 获取系统统计
// @Description 获取身份、消息与活跃凭证的总量统计（公开接口，无需认证）
// @Tags Public
// @Produce json
// @Success 200 {object} Response{data=domain.SystemStatistics}
// @Failure 500 {object} Response
// @Router /v1/stats [get]
func (h *PublicHandler) GetStatistics(c *gin.Context) {
	stats, err := h.stats.Collect()
	if err != nil {
		InternalError(c, MsgStatisticsGetFailed)
		return
	}

	Success(c, stats)
}
