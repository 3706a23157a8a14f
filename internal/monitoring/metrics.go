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

	// 信箱指标
	LinksCreated prometheus.Counter
	LinksActive  prometheus.Gauge
	LinkToggles  *prometheus.CounterVec

	// 留言指标
	MessagesSubmitted *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec
	MessagesDeleted   prometheus.Counter
	MessagesTotal     prometheus.Gauge

	// 实时推送指标
	WebSocketConnections prometheus.Gauge

	// SMTP 网关指标
	SMTPMessagesReceived prometheus.Counter
	SMTPMessagesRejected *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whisperflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		LinksCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "whisperflow_links_created_total",
				Help: "Total number of anonymous links created",
			},
		),

		LinksActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "whisperflow_links_active",
				Help: "Current number of active links",
			},
		),

		LinkToggles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_link_toggles_total",
				Help: "Total number of link activation toggles",
			},
			[]string{"action"}, // block / unblock
		),

		MessagesSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_messages_submitted_total",
				Help: "Total number of messages submitted",
			},
			[]string{"attributed"}, // true / false
		),

		MessagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_messages_rejected_total",
				Help: "Total number of rejected message submissions",
			},
			[]string{"reason"}, // link_not_found / invalid_content
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "whisperflow_messages_deleted_total",
				Help: "Total number of messages deleted by inbox owners",
			},
		),

		MessagesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "whisperflow_messages_total",
				Help: "Current total number of stored messages",
			},
		),

		WebSocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "whisperflow_websocket_connections",
				Help: "Current number of WebSocket subscriber connections",
			},
		),

		SMTPMessagesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "whisperflow_smtp_messages_received_total",
				Help: "Total number of messages delivered through the SMTP gateway",
			},
		),

		SMTPMessagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_smtp_messages_rejected_total",
				Help: "Total number of SMTP deliveries rejected",
			},
			[]string{"reason"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisperflow_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "whisperflow_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordLinkCreated 记录信箱创建
func (m *Metrics) RecordLinkCreated() {
	m.LinksCreated.Inc()
}

// RecordLinkToggle 记录信箱启停切换
func (m *Metrics) RecordLinkToggle(blocked bool) {
	action := "unblock"
	if blocked {
		action = "block"
	}
	m.LinkToggles.WithLabelValues(action).Inc()
}

// RecordMessageSubmitted 记录留言投递
func (m *Metrics) RecordMessageSubmitted(attributed bool) {
	label := "false"
	if attributed {
		label = "true"
	}
	m.MessagesSubmitted.WithLabelValues(label).Inc()
}

// RecordMessageRejected 记录留言投递被拒绝
func (m *Metrics) RecordMessageRejected(reason string) {
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordMessageDeleted 记录留言删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordSMTPReceived 记录 SMTP 网关成功投递
func (m *Metrics) RecordSMTPReceived() {
	m.SMTPMessagesReceived.Inc()
}

// RecordSMTPRejected 记录 SMTP 网关拒收
func (m *Metrics) RecordSMTPRejected(reason string) {
	m.SMTPMessagesRejected.WithLabelValues(reason).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateLinksActive 更新激活信箱数量
func (m *Metrics) UpdateLinksActive(count int) {
	m.LinksActive.Set(float64(count))
}

// UpdateMessagesTotal 更新留言总数
func (m *Metrics) UpdateMessagesTotal(count int) {
	m.MessagesTotal.Set(float64(count))
}

// UpdateWebSocketConnections 更新 WebSocket 连接数
func (m *Metrics) UpdateWebSocketConnections(count int) {
	m.WebSocketConnections.Set(float64(count))
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
