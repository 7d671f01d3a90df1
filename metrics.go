package billingsync

import (
	"time"
)

// Metrics defines the interface for collecting billingsync metrics.
// Implement this interface to integrate with your monitoring system (Prometheus, DataDog, etc.).
type Metrics interface {
	// IncrementCounter increments a counter metric
	IncrementCounter(name string, labels map[string]string)
	// RecordHistogram records a histogram/timing metric
	RecordHistogram(name string, value float64, labels map[string]string)
	// SetGauge sets a gauge metric value
	SetGauge(name string, value float64, labels map[string]string)
}

// NoOpMetrics is a no-op implementation of Metrics for when monitoring is disabled.
type NoOpMetrics struct{}

func (m *NoOpMetrics) IncrementCounter(name string, labels map[string]string) {}

func (m *NoOpMetrics) RecordHistogram(name string, value float64, labels map[string]string) {}

func (m *NoOpMetrics) SetGauge(name string, value float64, labels map[string]string) {}

// recordOperation records the outcome of an orchestrator operation.
func (m *Manager) recordOperation(op, status string, duration time.Duration) {
	if m.metrics == nil {
		return
	}

	labels := map[string]string{
		"operation": op,
		"status":    status,
	}

	m.metrics.IncrementCounter("billingsync_operations_total", labels)
	m.metrics.RecordHistogram("billingsync_operation_duration_seconds", duration.Seconds(), labels)
}

// recordPoll records how a confirmation polling phase ended.
func (m *Manager) recordPoll(op string, pollCount int, elapsed time.Duration, timedOut bool) {
	if m.metrics == nil {
		return
	}

	status := "confirmed"
	if timedOut {
		status = "timeout"
	}

	labels := map[string]string{
		"operation": op,
		"status":    status,
	}

	m.metrics.IncrementCounter("billingsync_entitlement_polls_total", labels)
	m.metrics.RecordHistogram("billingsync_entitlement_poll_seconds", elapsed.Seconds(), labels)
	m.metrics.SetGauge("billingsync_entitlement_poll_count", float64(pollCount), labels)
}

// recordPendingDepth publishes the pending-confirmation queue depth when the
// queue can report one.
func (m *Manager) recordPendingDepth() {
	if m.metrics == nil {
		return
	}

	type depther interface{ depth() int }
	if q, ok := m.pending.(depther); ok {
		m.metrics.SetGauge("billingsync_pending_confirmations", float64(q.depth()), nil)
	}
}
