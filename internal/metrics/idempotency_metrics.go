package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics описывает повторы запросов и очистку ключей.
type IdempotencyMetrics struct {
	requests       *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	lastDeleted    prometheus.Gauge
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики идемпотентности.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "watermate_idempotency_requests_total",
			Help: "Requests carrying an idempotency key grouped by outcome.",
		}, []string{"outcome"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "watermate_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "watermate_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordRequest учитывает исход запроса: executed, replayed, conflict, in_progress.
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordCleanupRun учитывает прогон очистки.
func (m *IdempotencyMetrics) RecordCleanupRun(result string, deleted int) {
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// RecordDeleted учитывает удалённые записи.
func (m *IdempotencyMetrics) RecordDeleted(n int) {
	if n > 0 {
		m.cleanupDeleted.Add(float64(n))
	}
}
