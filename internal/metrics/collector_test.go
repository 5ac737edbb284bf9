package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

func TestNewCollector(t *testing.T) {
	collector, _ := newTestCollector(t)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.runDuration)
	assert.NotNil(t, collector.admissionDenied)
	assert.NotNil(t, collector.validationBlocked)
	assert.NotNil(t, collector.auditDropped)
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, nil)

	assert.Panics(t, func() {
		NewCollector("dup", reg, nil)
	})
}

func TestCollector_RecordRun(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordRun("success", 100*time.Millisecond)
	collector.RecordRun("success", 50*time.Millisecond)
	collector.RecordRun("blocked", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.runsTotal.WithLabelValues("blocked")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.runDuration))
}

func TestCollector_RecordAdmission(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordAdmissionDenied("rate_limited")
	collector.RecordAdmissionDenied("rate_limited")
	collector.RecordAdmissionDenied("session_token_limit")
	collector.RecordTokensCharged(120)
	collector.RecordTokensCharged(-5)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.admissionDenied.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.admissionDenied.WithLabelValues("session_token_limit")))
	assert.Equal(t, 120.0, testutil.ToFloat64(collector.tokensCharged))
}

func TestCollector_RecordValidation(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordValidationBlocked("input", "max_length")
	collector.RecordValidationBlocked("output", "sensitive_data")
	collector.RecordValidationIssue("sensitive_data", "warning")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.validationBlocked.WithLabelValues("input", "max_length")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.validationBlocked.WithLabelValues("output", "sensitive_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.validationIssues.WithLabelValues("sensitive_data", "warning")))
}

func TestCollector_RecordAuditDropped(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.RecordAuditDropped()
	collector.RecordAuditDropped()

	expected := `
# HELP test_audit_dropped_total Total number of audit records dropped before reaching sinks
# TYPE test_audit_dropped_total counter
test_audit_dropped_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_audit_dropped_total"))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordRun("success", time.Second)
		collector.RecordAdmissionDenied("rate_limited")
		collector.RecordTokensCharged(10)
		collector.RecordValidationBlocked("input", "max_length")
		collector.RecordValidationIssue("blocked_keyword", "error")
		collector.RecordAuditDropped()
	})
}
