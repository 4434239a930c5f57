package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOutboxMetrics_Backlog(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.SetBacklog(3, 90*time.Second)
	if got := gaugeValue(t, m.pendingRecords); got != 3 {
		t.Fatalf("expected 3 pending, got %v", got)
	}
	if got := gaugeValue(t, m.oldestPendingAge); got != 90 {
		t.Fatalf("expected age 90s, got %v", got)
	}

	m.SetBacklog(0, time.Hour)
	if got := gaugeValue(t, m.oldestPendingAge); got != 0 {
		t.Fatalf("empty backlog must reset age, got %v", got)
	}
}

func TestOutboxMetrics_RecordPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetricsWithRegisterer(reg)
	again := NewOutboxMetricsWithRegisterer(reg)

	m.RecordPublish(OutboxResultSent)
	again.RecordPublish(OutboxResultSent)
	m.RecordPublish(OutboxResultFailed)

	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultSent)); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %v", got)
	}
	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultFailed)); got != 1 {
		t.Fatalf("expected 1 failed attempt, got %v", got)
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	m := NewHTTPMetricsWithRegisterer(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/api/v1/orders", "200", 15*time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/orders", "200", 5*time.Millisecond)

	if got := counterValue(t, m.requests.WithLabelValues("GET", "/api/v1/orders", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}
