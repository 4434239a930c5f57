package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIdempotencyMetrics_Requests(t *testing.T) {
	m := NewIdempotencyMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordRequest("executed")
	m.RecordRequest("replayed")
	m.RecordRequest("replayed")

	if got := counterValue(t, m.requests.WithLabelValues("replayed")); got != 2 {
		t.Fatalf("expected 2 replayed, got %v", got)
	}
	if got := counterValue(t, m.requests.WithLabelValues("executed")); got != 1 {
		t.Fatalf("expected 1 executed, got %v", got)
	}
}

func TestIdempotencyMetrics_Cleanup(t *testing.T) {
	m := NewIdempotencyMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCleanupRun("ok", 4)
	m.RecordDeleted(4)
	m.RecordCleanupRun("error", 0)
	m.RecordDeleted(0)

	if got := gaugeValue(t, m.lastDeleted); got != 4 {
		t.Fatalf("failed run must keep last deleted, got %v", got)
	}
	if got := counterValue(t, m.cleanupDeleted); got != 4 {
		t.Fatalf("expected 4 deleted, got %v", got)
	}
	if got := counterValue(t, m.cleanupRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
}
