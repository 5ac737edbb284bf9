// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
// nil Collector 的所有记录方法均为空操作。
type Collector struct {
	// 执行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// 准入指标
	admissionDenied *prometheus.CounterVec
	tokensCharged   prometheus.Counter

	// 校验指标
	validationBlocked *prometheus.CounterVec
	validationIssues  *prometheus.CounterVec

	// 审计指标
	auditDropped prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg
// reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 执行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of guarded runs by final status",
		},
		[]string{"status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Guarded run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// 准入指标
	c.admissionDenied = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_denied_total",
			Help:      "Total number of admission denials by reason",
		},
		[]string{"reason"},
	)

	c.tokensCharged = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_tokens_charged_total",
			Help:      "Total number of tokens charged against session quotas",
		},
	)

	// 校验指标
	c.validationBlocked = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_blocked_total",
			Help:      "Total number of runs blocked by a validator",
		},
		[]string{"stage", "validator"},
	)

	c.validationIssues = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Total number of validation issues by type and severity",
		},
		[]string{"type", "severity"},
	)

	// 审计指标
	c.auditDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Total number of audit records dropped before reaching sinks",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 执行指标记录
// =============================================================================

// RecordRun 记录一次受保护执行
func (c *Collector) RecordRun(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// =============================================================================
// 🚦 准入指标记录
// =============================================================================

// RecordAdmissionDenied 记录准入拒绝
func (c *Collector) RecordAdmissionDenied(reason string) {
	if c == nil {
		return
	}
	c.admissionDenied.WithLabelValues(reason).Inc()
}

// RecordTokensCharged 记录已计入配额的 Token 数
func (c *Collector) RecordTokensCharged(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.tokensCharged.Add(float64(n))
}

// =============================================================================
// 🛡️ 校验指标记录
// =============================================================================

// RecordValidationBlocked 记录被校验器拦截
func (c *Collector) RecordValidationBlocked(stage, validator string) {
	if c == nil {
		return
	}
	c.validationBlocked.WithLabelValues(stage, validator).Inc()
}

// RecordValidationIssue 记录单个校验问题
func (c *Collector) RecordValidationIssue(issueType, severity string) {
	if c == nil {
		return
	}
	c.validationIssues.WithLabelValues(issueType, severity).Inc()
}

// =============================================================================
// 📝 审计指标记录
// =============================================================================

// RecordAuditDropped 记录未能送达 sink 的审计记录
func (c *Collector) RecordAuditDropped() {
	if c == nil {
		return
	}
	c.auditDropped.Inc()
}
