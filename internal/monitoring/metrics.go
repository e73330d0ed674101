package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 身份指标
	IdentitiesClaimed prometheus.Counter
	IdentitiesTotal   prometheus.Gauge

	// 访问凭证指标
	AccessCodesIssued  prometheus.Counter
	AccessCodesActive  prometheus.Gauge
	AccessCodesExpired prometheus.Counter
	AccessDenied       prometheus.Counter

	// 消息指标
	MessagesReceived prometheus.Counter
	MessagesRead     prometheus.Counter
	MessagesDeleted  prometheus.Counter
	MessagesTotal    prometheus.Gauge
	MessagesUnread   prometheus.Gauge

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	RedisConnections    prometheus.Gauge
	MemoryUsage         prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// WebSocket 指标
	WebSocketConnections prometheus.Gauge
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unkahi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unkahi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unkahi_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unkahi_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 身份指标
		IdentitiesClaimed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_identities_claimed_total",
				Help: "Total number of identities claimed",
			},
		),

		IdentitiesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_identities_total",
				Help: "Number of claimed identities",
			},
		),

		// 访问凭证指标
		AccessCodesIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_access_codes_issued_total",
				Help: "Total number of access codes issued",
			},
		),

		AccessCodesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_access_codes_active",
				Help: "Number of unexpired access codes",
			},
		),

		AccessCodesExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_access_codes_expired_total",
				Help: "Total number of access codes removed after expiry",
			},
		),

		AccessDenied: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_access_denied_total",
				Help: "Total number of rejected inbox accesses",
			},
		),

		// 消息指标
		MessagesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_messages_received_total",
				Help: "Total number of messages received",
			},
		),

		MessagesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_messages_read_total",
				Help: "Total number of messages marked read",
			},
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_messages_deleted_total",
				Help: "Total number of messages deleted",
			},
		),

		MessagesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_messages_total",
				Help: "Total number of stored messages",
			},
		),

		MessagesUnread: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_messages_unread",
				Help: "Number of unread messages",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_database_connections",
				Help: "Number of database connections",
			},
		),

		RedisConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_redis_connections",
				Help: "Number of Redis connections",
			},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_memory_usage_bytes",
				Help: "Memory usage in bytes",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unkahi_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unkahi_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		// WebSocket 指标
		WebSocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "unkahi_websocket_connections",
				Help: "Number of active websocket connections",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordIdentityClaimed 记录身份认领
func (m *Metrics) RecordIdentityClaimed() {
	m.IdentitiesClaimed.Inc()
}

// RecordAccessCodeIssued 记录凭证签发
func (m *Metrics) RecordAccessCodeIssued() {
	m.AccessCodesIssued.Inc()
}

// RecordAccessCodesExpired 记录过期凭证清理数量
func (m *Metrics) RecordAccessCodesExpired(count int) {
	m.AccessCodesExpired.Add(float64(count))
}

// RecordAccessDenied 记录被拒绝的收件箱访问
func (m *Metrics) RecordAccessDenied() {
	m.AccessDenied.Inc()
}

// RecordMessageReceived 记录消息接收
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordMessageRead 记录消息已读
func (m *Metrics) RecordMessageRead() {
	m.MessagesRead.Inc()
}

// RecordMessageDeleted 记录消息删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateIdentitiesTotal 更新身份总数
func (m *Metrics) UpdateIdentitiesTotal(count int) {
	m.IdentitiesTotal.Set(float64(count))
}

// UpdateAccessCodesActive 更新有效凭证数
func (m *Metrics) UpdateAccessCodesActive(count int) {
	m.AccessCodesActive.Set(float64(count))
}

// UpdateMessagesTotal 更新消息总数
func (m *Metrics) UpdateMessagesTotal(count int) {
	m.MessagesTotal.Set(float64(count))
}

// UpdateMessagesUnread 更新未读消息数
func (m *Metrics) UpdateMessagesUnread(count int) {
	m.MessagesUnread.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateRedisConnections 更新 Redis 连接数
func (m *Metrics) UpdateRedisConnections(count int) {
	m.RedisConnections.Set(float64(count))
}

// UpdateMemoryUsage 更新内存使用量
func (m *Metrics) UpdateMemoryUsage(bytes int64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateWebSocketConnections 更新 WebSocket 连接数
func (m *Metrics) UpdateWebSocketConnections(count int) {
	m.WebSocketConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
