package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushairer/upsertsql"
)

// 确保PrometheusMetrics实现了MetricsReporter接口
var _ upsertsql.MetricsReporter = (*PrometheusMetrics)(nil)

// Options Prometheus指标配置
type Options struct {
	Namespace   string
	ConstLabels map[string]string // 追加到所有指标的常量标签，如 {"env":"prod"}
	Registry    *prometheus.Registry
}

// PrometheusMetrics Prometheus指标收集器，实现MetricsReporter接口
type PrometheusMetrics struct {
	writeDuration *prometheus.HistogramVec
	writeTotal    *prometheus.CounterVec
	batchSize     *prometheus.HistogramVec
	affectedRows  *prometheus.CounterVec
	skippedRows   *prometheus.CounterVec
	errorTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics 创建Prometheus指标收集器
func NewPrometheusMetrics(opts Options) *PrometheusMetrics {
	if opts.Namespace == "" {
		opts.Namespace = "upsertsql"
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	pm := &PrometheusMetrics{
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "write_duration_seconds",
				Help:        "Duration of batch writes in seconds",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "strategy", "status"},
		),

		writeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "write_total",
				Help:        "Total number of batch writes",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "strategy", "status"},
		),

		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "batch_size",
				Help:        "Number of rows per batch",
				Buckets:     prometheus.ExponentialBuckets(1, 2, 15), // 1 to ~32k
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "strategy"},
		),

		affectedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "affected_rows_total",
				Help:        "Rows inserted or updated",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "strategy"},
		),

		skippedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "skipped_rows_total",
				Help:        "Rows left unchanged because of a key conflict or a failed guard",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "strategy"},
		),

		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "errors_total",
				Help:        "Total number of write errors by kind",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"table", "kind"},
		),

		registry: registry,
	}

	registry.MustRegister(
		pm.writeDuration,
		pm.writeTotal,
		pm.batchSize,
		pm.affectedRows,
		pm.skippedRows,
		pm.errorTotal,
	)

	return pm
}

// ObserveWrite 实现MetricsReporter接口
func (pm *PrometheusMetrics) ObserveWrite(table string, strategy upsertsql.ConflictStrategy, batchSize int, affected int64, duration time.Duration, status string) {
	s := strategy.String()

	pm.writeDuration.WithLabelValues(table, s, status).Observe(duration.Seconds())
	pm.writeTotal.WithLabelValues(table, s, status).Inc()
	pm.batchSize.WithLabelValues(table, s).Observe(float64(batchSize))

	if status != "success" {
		return
	}
	pm.affectedRows.WithLabelValues(table, s).Add(float64(affected))
	// MySQL 的更新计为 2，可能超过批次大小
	if skipped := int64(batchSize) - affected; skipped > 0 {
		pm.skippedRows.WithLabelValues(table, s).Add(float64(skipped))
	}
}

// IncError 实现MetricsReporter接口
func (pm *PrometheusMetrics) IncError(table string, kind string) {
	pm.errorTotal.WithLabelValues(table, kind).Inc()
}

// Registry 返回底层注册表
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler 返回 /metrics 处理器
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}
