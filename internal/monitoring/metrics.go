package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有 Record 方法都允许在 nil 接收者上调用，未启用监控的组件可以直接传 nil。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PanicsTotal         prometheus.Counter

	// 业务指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	UsersRegistered  prometheus.Counter
	LoginsTotal      *prometheus.CounterVec

	// 邮件接收指标
	IntakeTotal          *prometheus.CounterVec
	IntakeDuration       prometheus.Histogram
	SMTPSessionsRejected prometheus.Counter

	// 清理任务指标
	SweeperDeleted *prometheus.CounterVec
	SweeperErrors  *prometheus.CounterVec
	SweeperLastRun prometheus.Gauge

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
	RateLimitErrors prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics 创建监控指标并注册到 reg。
// reg 为 nil 时使用独立的注册表，便于测试中重复创建。
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),
		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted by users or admins",
			},
		),
		UsersRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_users_registered_total",
				Help: "Total number of users registered",
			},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),

		IntakeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_intake_total",
				Help: "Inbound messages by intake result",
			},
			[]string{"result"},
		),
		IntakeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempmail_intake_duration_seconds",
				Help:    "Time spent decoding and storing an inbound message",
				Buckets: prometheus.DefBuckets,
			},
		),
		SMTPSessionsRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_smtp_sessions_rejected_total",
				Help: "SMTP sessions rejected by the connection limiter",
			},
		),

		SweeperDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_sweeper_deleted_total",
				Help: "Rows deleted by the retention sweeper",
			},
			[]string{"kind"},
		),
		SweeperErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_sweeper_errors_total",
				Help: "Failed retention sweeper phases",
			},
			[]string{"kind"},
		),
		SweeperLastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_sweeper_last_run_timestamp_seconds",
				Help: "Unix time of the last completed sweep",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_rate_limit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),
		RateLimitErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_rate_limit_errors_total",
				Help: "Rate limit counter failures (requests are let through)",
			},
		),

		gatherer: reg,
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	if m == nil {
		return
	}
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	if m == nil {
		return
	}
	m.MailboxesDeleted.Inc()
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

// RecordLogin 记录登录结果: success, invalid, disabled, error
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// RecordIntake 记录一次邮件接收的结果与耗时
func (m *Metrics) RecordIntake(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.IntakeTotal.WithLabelValues(result).Inc()
	m.IntakeDuration.Observe(duration.Seconds())
}

// RecordSMTPSessionRejected 记录被限速拒绝的 SMTP 会话
func (m *Metrics) RecordSMTPSessionRejected() {
	if m == nil {
		return
	}
	m.SMTPSessionsRejected.Inc()
}

// RecordSweep 记录某一清理阶段删除的行数
func (m *Metrics) RecordSweep(kind string, deleted int64) {
	if m == nil {
		return
	}
	m.SweeperDeleted.WithLabelValues(kind).Add(float64(deleted))
}

// RecordSweepError 记录失败的清理阶段
func (m *Metrics) RecordSweepError(kind string) {
	if m == nil {
		return
	}
	m.SweeperErrors.WithLabelValues(kind).Inc()
}

// RecordSweepFinished 记录清理任务完成时间
func (m *Metrics) RecordSweepFinished(at time.Time) {
	if m == nil {
		return
	}
	m.SweeperLastRun.Set(float64(at.Unix()))
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(scope string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// RecordRateLimitError 记录限流计数失败
func (m *Metrics) RecordRateLimitError() {
	if m == nil {
		return
	}
	m.RateLimitErrors.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
