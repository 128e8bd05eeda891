package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库连接池
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge

	// 下单与支付
	checkoutTotal        *prometheus.CounterVec
	callbackTotal        *prometheus.CounterVec
	duplicateSuppressed  *prometheus.CounterVec
	gatewayErrorsTotal   *prometheus.CounterVec
	gatewayCallDuration  *prometheus.HistogramVec
	ledgerFailuresTotal  prometheus.Counter
	reconciledDraftTotal *prometheus.CounterVec

	// 异步任务
	workerTasksTotal *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器并注册到给定 registerer
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		dbConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),
		dbConnectionsIdle: f.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		}),

		checkoutTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_total",
				Help: "Checkouts by payment path and result",
			},
			[]string{"path", "result"},
		),
		callbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_callback_total",
				Help: "Payment finalisations by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		duplicateSuppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_duplicate_suppressed_total",
				Help: "Duplicate order or ledger writes suppressed by idempotency checks",
			},
			[]string{"kind"},
		),
		gatewayErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_errors_total",
				Help: "Payment gateway call failures",
			},
			[]string{"method", "operation"},
		),
		gatewayCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_gateway_call_duration_seconds",
				Help:    "Payment gateway call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ledgerFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_write_failures_total",
			Help: "Transaction record writes that failed and were queued for retry",
		}),
		reconciledDraftTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_reconciled_drafts_total",
				Help: "Drafts resolved by the reconciliation sweeper",
			},
			[]string{"result"},
		),

		workerTasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_tasks_total",
				Help: "Background worker task results",
			},
			[]string{"result"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateDBConnections 更新连接池状态
func (m *MetricsCollector) UpdateDBConnections(active, idle int) {
	m.dbConnectionsActive.Set(float64(active))
	m.dbConnectionsIdle.Set(float64(idle))
}

// RecordCheckout path: ewallet/direct, result: redirect/confirmed/invalid/gateway_error
func (m *MetricsCollector) RecordCheckout(path, result string) {
	m.checkoutTotal.WithLabelValues(path, result).Inc()
}

// RecordCallback source: redirect/webhook/reconcile, outcome: success/failure/duplicate
func (m *MetricsCollector) RecordCallback(source, outcome string) {
	m.callbackTotal.WithLabelValues(source, outcome).Inc()
}

// RecordDuplicateSuppressed kind: order/ledger/callback
func (m *MetricsCollector) RecordDuplicateSuppressed(kind string) {
	m.duplicateSuppressed.WithLabelValues(kind).Inc()
}

func (m *MetricsCollector) RecordGatewayError(method, operation string) {
	m.gatewayErrorsTotal.WithLabelValues(method, operation).Inc()
}

func (m *MetricsCollector) ObserveGatewayCall(operation string, duration time.Duration) {
	m.gatewayCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordLedgerFailure() {
	m.ledgerFailuresTotal.Inc()
}

func (m *MetricsCollector) RecordReconciled(result string) {
	m.reconciledDraftTotal.WithLabelValues(result).Inc()
}

func (m *MetricsCollector) RecordWorkerTask(result string) {
	m.workerTasksTotal.WithLabelValues(result).Inc()
}

var (
	globalCollector *MetricsCollector
	initOnce        sync.Once
)

// GetGlobalCollector 获取全局指标收集器，首次调用时注册到默认 registry
func GetGlobalCollector() *MetricsCollector {
	initOnce.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}
