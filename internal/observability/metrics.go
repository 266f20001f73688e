package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "medfleet_"

	ResultSuccess = "success"
	ResultError   = "error"
	// ResultDenied 表示读操作因未登录而降级为空结果。
	ResultDenied = "denied"
)

// Metrics 汇总服务层的 Prometheus 指标。nil *Metrics 的所有方法都是空操作。
type Metrics struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	alertTransitions *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg；reg 为 nil 时只创建不注册（测试里常用）。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total service operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Service operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		alertTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_transitions_total",
				Help: "Alert status transitions by from/to status",
			},
			[]string{"from", "to"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.operationLatency, m.alertTransitions)
	}
	return m
}

// ObserveOperation 记录一次操作的结果与耗时。
func (m *Metrics) ObserveOperation(operation string, result string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncAlertTransition(from string, to string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(from, to).Inc()
}

// OperationCounter 返回某个 operation/result 组合的当前计数，供 CLI 与测试读取。
func (m *Metrics) OperationCounter(operation string, result string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.operations.WithLabelValues(operation, result)
}

func (m *Metrics) AlertTransitionCounter(from string, to string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.alertTransitions.WithLabelValues(from, to)
}
