package httptransport

import (
	"net/http"
	"strings"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/health"
	"unkahi/backend/internal/middleware"
	"unkahi/backend/internal/monitoring"
	"unkahi/backend/internal/service"
	"unkahi/backend/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	identities *service.IdentityService
	messages   *service.MessageService
	inbox      *service.InboxService
	remembered *service.RememberedCodeService
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	IdentityService   *service.IdentityService
	MessageService    *service.MessageService
	InboxService      *service.InboxService
	RememberedService *service.RememberedCodeService
	StatsService      *service.StatsService
	WebSocketHub      *websocket.Hub
	HealthChecker     *health.HealthChecker
	Metrics           *monitoring.Metrics
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 匿名消息很小，请求体限制在 64KB 足够
	router.Use(middleware.RequestSizeLimit(64 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Access-Code", "X-Client-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 监控中间件
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
	}

	// 创建处理器
	handler := &Handler{
		identities: deps.IdentityService,
		messages:   deps.MessageService,
		inbox:      deps.InboxService,
		remembered: deps.RememberedService,
	}

	publicHandler := NewPublicHandler(deps.Config, deps.StatsService)

	// 创建中间件
	accessAuth := middleware.NewAccessAuth(deps.InboxService, deps.Logger)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Public Routes（无需认证的公开API） ==========
		publicRoutes := v1.Group("/public")
		{
			publicRoutes.GET("/config", publicHandler.GetSystemConfig) // 获取系统配置
		}
		v1.GET("/stats", publicHandler.GetStatistics) // 系统统计

		// ========== Identity Routes ==========
		identityRoutes := v1.Group("/identities")
		{
			identityRoutes.POST("", handler.claimIdentity)
			identityRoutes.GET("/:handle", handler.lookupIdentity)
			identityRoutes.POST("/:handle/access-codes", handler.issueAccessCode)

			// 任何人都可以向已认领的句柄投递匿名消息
			identityRoutes.POST("/:handle/messages", handler.sendMessage)
		}

		// ========== Inbox Routes（需要访问凭证） ==========
		inboxRoutes := v1.Group("/inbox")
		{
			inboxRoutes.GET("", accessAuth.RequireAccessCode(), handler.openInbox)
			inboxRoutes.POST("/messages/:messageId/read", accessAuth.RequireAccessCode(), handler.markMessageRead)
			inboxRoutes.DELETE("/messages/:messageId", accessAuth.RequireAccessCode(), handler.deleteMessage)

			// 记住的凭证按客户端自生成的 X-Client-ID 存取
			inboxRoutes.GET("/remembered", handler.recallRememberedCode)
			inboxRoutes.PUT("/remembered", handler.rememberCode)
			inboxRoutes.DELETE("/remembered", handler.forgetRememberedCode)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}

type claimIdentityRequest struct {
	Handle string `json:"handle"`
}

type identityResponse struct {
	ID            string     `json:"id"`
	Handle        string     `json:"handle"`
	ProfileURL    string     `json:"profileUrl"`
	ShareURL      string     `json:"shareUrl"`
	MessageCount  int        `json:"messageCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

type accessCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type claimIdentityResponse struct {
	Identity   identityResponse   `json:"identity"`
	AccessCode accessCodeResponse `json:"accessCode"`
	ShareURL   string             `json:"shareUrl"`
}

func (h *Handler) toIdentityResponse(identity *domain.Identity) identityResponse {
	return identityResponse{
		ID:            identity.ID,
		Handle:        identity.Handle,
		ProfileURL:    identity.ProfileURL,
		ShareURL:      h.identities.ShareURLFor(identity.Handle),
		MessageCount:  identity.MessageCount,
		CreatedAt:     identity.CreatedAt,
		LastMessageAt: identity.LastMessageAt,
	}
}

func toAccessCodeResponse(code *domain.AccessCode) accessCodeResponse {
	return accessCodeResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
		CreatedAt: code.CreatedAt,
	}
}

// claimIdentity godoc
// @Summary 认领 Instagram 用户名
// @Description 认领一个 Instagram 用户名并签发访问凭证。重复认领返回既有身份和一个新凭证。
// @Tags Identities
// @Accept json
// @Produce json
// @Param request body claimIdentityRequest true "用户名，支持主页链接或 @ 前缀"
// @Success 201 {object} Response{data=claimIdentityResponse}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /v1/identities [post]
func (h *Handler) claimIdentity(c *gin.Context) {
	var req claimIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.identities.Claim(req.Handle)
	if err != nil {
		switch err {
		case domain.ErrInvalidHandle:
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgIdentityClaimFailed)
		}
		return
	}

	Created(c, claimIdentityResponse{
		Identity:   h.toIdentityResponse(result.Identity),
		AccessCode: toAccessCodeResponse(result.AccessCode),
		ShareURL:   result.ShareURL,
	})
}

// lookupIdentity godoc
// @Summary 查询用户名认领状态
// @Description 查询某个用户名是否已被认领，返回公开的身份信息
// @Tags Identities
// @Produce json
// @Param handle path string true "Instagram 用户名"
// @Success 200 {object} Response{data=identityResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/identities/{handle} [get]
func (h *Handler) lookupIdentity(c *gin.Context) {
	identity, err := h.identities.Lookup(c.Param("handle"))
	if err != nil {
		switch err {
		case domain.ErrInvalidHandle:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrIdentityNotFound:
			NotFound(c, MsgIdentityNotFound)
		default:
			InternalError(c, MsgIdentityLookupFailed)
		}
		return
	}

	Success(c, h.toIdentityResponse(identity))
}

// issueAccessCode godoc
// @Summary 签发新的访问凭证
// @Description 为已认领的用户名签发一个新访问凭证，旧凭证在各自过期前仍然有效
// @Tags Identities
// @Produce json
// @Param handle path string true "Instagram 用户名"
// @Success 201 {object} Response{data=accessCodeResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/identities/{handle}/access-codes [post]
func (h *Handler) issueAccessCode(c *gin.Context) {
	code, err := h.identities.IssueAccessCode(c.Param("handle"))
	if err != nil {
		switch err {
		case domain.ErrInvalidHandle:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrIdentityNotFound:
			NotFound(c, MsgIdentityNotFound)
		default:
			InternalError(c, MsgCodeIssueFailed)
		}
		return
	}

	Created(c, toAccessCodeResponse(code))
}

type sendMessageRequest struct {
	Body         string `json:"body"`
	Browser      string `json:"browser"`
	Device       string `json:"device"`
	Fingerprint  string `json:"fingerprint"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
}

type senderInfo struct {
	Browser     string `json:"browser"`
	Device      string `json:"device"`
	Fingerprint string `json:"fingerprint"`
	Country     string `json:"country"`
}

type messageResponse struct {
	ID        string     `json:"id"`
	Body      string     `json:"body"`
	Sender    senderInfo `json:"sender"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
}

type messageListResponse struct {
	Items []messageResponse `json:"items"`
	Count int               `json:"count"`
}

func toMessageResponse(message *domain.Message) messageResponse {
	return messageResponse{
		ID:   message.ID,
		Body: message.Body,
		Sender: senderInfo{
			Browser:     message.SenderBrowser,
			Device:      message.SenderDevice,
			Fingerprint: message.SenderFingerprint,
			Country:     message.SenderCountry,
		},
		IsRead:    message.IsRead,
		CreatedAt: message.CreatedAt,
	}
}

// deriveSenderSignature 组装发送者指纹。
// 客户端上报的 browser/device/fingerprint 原样采用，缺失的字段由服务端
// 根据请求头推导；IP 和国家只信请求头，不接受客户端上报。
func deriveSenderSignature(c *gin.Context, req sendMessageRequest) domain.SenderSignature {
	userAgent := c.GetHeader("User-Agent")

	sig := domain.DeriveSignature(userAgent)
	if req.ScreenWidth > 0 || req.ScreenHeight > 0 {
		sig.ScreenW = req.ScreenWidth
		sig.ScreenH = req.ScreenHeight
		sig.Fingerprint = domain.Fingerprint(userAgent, req.ScreenWidth, req.ScreenHeight)
	}
	if req.Browser != "" {
		sig.Browser = req.Browser
	}
	if req.Device != "" {
		sig.Device = req.Device
	}
	if req.Fingerprint != "" {
		sig.Fingerprint = req.Fingerprint
	}

	// 反向代理链上第一跳才是真实来源
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		sig.IP = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		sig.IP = realIP
	} else {
		sig.IP = "unknown"
	}

	if country := c.GetHeader("CF-IPCountry"); country != "" {
		sig.Country = country
	}

	return sig
}

// sendMessage godoc
// @Summary 发送匿名消息
// @Description 向已认领的用户名投递一条匿名消息，最长 500 字符
// @Tags Messages
// @Accept json
// @Produce json
// @Param handle path string true "收件人用户名"
// @Param request body sendMessageRequest true "消息内容"
// @Success 201 {object} Response{data=messageResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/identities/{handle}/messages [post]
func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	message, err := h.messages.Send(service.SendInput{
		RecipientHandle: c.Param("handle"),
		Body:            req.Body,
		Signature:       deriveSenderSignature(c, req),
	})
	if err != nil {
		switch err {
		case domain.ErrInvalidHandle, service.ErrEmptyMessage, service.ErrMessageTooLong:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrIdentityNotFound:
			NotFound(c, MsgIdentityNotFound)
		default:
			InternalError(c, MsgMessageSendFailed)
		}
		return
	}

	Created(c, toMessageResponse(message))
}

type inboxResponse struct {
	Identity identityResponse    `json:"identity"`
	Messages messageListResponse `json:"messages"`
}

// openInbox godoc
// @Summary 打开收件箱
// @Description 用访问凭证打开收件箱，消息按时间倒序排列
// @Tags Inbox
// @Produce json
// @Param Authorization header string false "Bearer 访问凭证"
// @Param X-Access-Code header string false "访问凭证"
// @Success 200 {object} Response{data=inboxResponse}
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox [get]
func (h *Handler) openInbox(c *gin.Context) {
	code := c.GetString(middleware.ContextKeyAccessCode)

	inbox, err := h.inbox.Open(code)
	if err != nil {
		switch err {
		case service.ErrAccessDenied:
			Unauthorized(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgInboxOpenFailed)
		}
		return
	}

	items := make([]messageResponse, 0, len(inbox.Messages))
	for i := range inbox.Messages {
		items = append(items, toMessageResponse(&inbox.Messages[i]))
	}

	Success(c, inboxResponse{
		Identity: h.toIdentityResponse(inbox.Identity),
		Messages: messageListResponse{
			Items: items,
			Count: len(items),
		},
	})
}

// markMessageRead godoc
// @Summary 标记消息已读
// @Description 把收件箱中的一条消息标记为已读，重复标记是幂等的
// @Tags Inbox
// @Param messageId path string true "消息ID"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox/messages/{messageId}/read [post]
func (h *Handler) markMessageRead(c *gin.Context) {
	code := c.GetString(middleware.ContextKeyAccessCode)

	err := h.inbox.MarkRead(code, c.Param("messageId"))
	if err != nil {
		switch err {
		case service.ErrAccessDenied:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrNotMessageOwner:
			Forbidden(c, GetErrorMessage(err))
		case service.ErrMessageNotFound:
			NotFound(c, MsgMessageNotFound)
		default:
			InternalError(c, MsgMessageMarkReadFailed)
		}
		return
	}

	SuccessWithMsg(c, "已标记为已读", nil)
}

// deleteMessage godoc
// @Summary 删除消息
// @Description 从收件箱删除一条消息，身份的累计消息数不会回退
// @Tags Inbox
// @Param messageId path string true "消息ID"
// @Success 204 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox/messages/{messageId} [delete]
func (h *Handler) deleteMessage(c *gin.Context) {
	code := c.GetString(middleware.ContextKeyAccessCode)

	err := h.inbox.Delete(code, c.Param("messageId"))
	if err != nil {
		switch err {
		case service.ErrAccessDenied:
			Unauthorized(c, GetErrorMessage(err))
		case service.ErrNotMessageOwner:
			Forbidden(c, GetErrorMessage(err))
		case service.ErrMessageNotFound:
			NotFound(c, MsgMessageNotFound)
		default:
			InternalError(c, MsgMessageDeleteFailed)
		}
		return
	}

	NoContent(c)
}

type rememberCodeRequest struct {
	Code string `json:"code"`
}

type rememberedCodeResponse struct {
	Code string `json:"code"`
}

// recallRememberedCode godoc
// @Summary 取回记住的访问凭证
// @Description 按 X-Client-ID 取回客户端上次记住的访问凭证
// @Tags Inbox
// @Produce json
// @Param X-Client-ID header string true "客户端自生成的不透明ID"
// @Success 200 {object} Response{data=rememberedCodeResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox/remembered [get]
func (h *Handler) recallRememberedCode(c *gin.Context) {
	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		BadRequest(c, MsgClientIDRequired)
		return
	}

	code, err := h.remembered.Recall(clientID)
	if err != nil {
		switch err {
		case service.ErrNoRememberedCode:
			NotFound(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}

	Success(c, rememberedCodeResponse{Code: code})
}

// rememberCode godoc
// @Summary 记住访问凭证
// @Description 把当前访问凭证与 X-Client-ID 关联，凭证必须有效
// @Tags Inbox
// @Accept json
// @Param X-Client-ID header string true "客户端自生成的不透明ID"
// @Param request body rememberCodeRequest true "访问凭证"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox/remembered [put]
func (h *Handler) rememberCode(c *gin.Context) {
	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		BadRequest(c, MsgClientIDRequired)
		return
	}

	var req rememberCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.remembered.Remember(clientID, req.Code); err != nil {
		switch err {
		case service.ErrAccessDenied:
			Unauthorized(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgRememberedSaveFailed)
		}
		return
	}

	SuccessWithMsg(c, "已记住访问凭证", nil)
}

// forgetRememberedCode godoc
// @Summary 清除记住的访问凭证
// @Description 删除 X-Client-ID 关联的访问凭证记录
// @Tags Inbox
// @Param X-Client-ID header string true "客户端自生成的不透明ID"
// @Success 204 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /v1/inbox/remembered [delete]
func (h *Handler) forgetRememberedCode(c *gin.Context) {
	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		BadRequest(c, MsgClientIDRequired)
		return
	}

	if err := h.remembered.Forget(clientID); err != nil {
		InternalError(c, MsgRememberedClearFailed)
		return
	}

	NoContent(c)
}
