package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics содержит метрики жизненного цикла заказов и уведомлений.
type LedgerMetrics struct {
	ordersCreated  prometheus.Counter
	statusChanges  *prometheus.CounterVec
	paymentChanges *prometheus.CounterVec
	ordersCanceled prometheus.Counter

	notificationsSent   *prometheus.CounterVec
	notificationsFailed prometheus.Counter

	hookDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewLedgerMetrics создаёт метрики в DefaultRegisterer.
func NewLedgerMetrics() *LedgerMetrics {
	return NewLedgerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLedgerMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewLedgerMetricsWithRegisterer(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LedgerMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_orders_created_total",
			Help: "Total number of orders placed",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "watermate_order_status_changes_total",
			Help: "Total number of order status changes by target status",
		}, []string{"status"}),
		paymentChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "watermate_order_payment_changes_total",
			Help: "Total number of payment status changes by target status",
		}, []string{"status"}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_orders_cancelled_total",
			Help: "Total number of order cancellations",
		}),
		notificationsSent: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "watermate_notifications_sent_total",
			Help: "Total number of notifications delivered to inboxes by type",
		}, []string{"type"}),
		notificationsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_notifications_failed_total",
			Help: "Total number of notifications that could not be delivered",
		}),
		hookDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "watermate_lifecycle_hook_duration_seconds",
			Help:    "Duration of lifecycle side effects per step",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "watermate_outbox_events_enqueued_total",
			Help: "Total number of events enqueued to the outbox",
		}),
	}
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *LedgerMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordStatusChange учитывает смену статуса заказа.
func (m *LedgerMetrics) RecordStatusChange(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordPaymentChange учитывает смену статуса оплаты.
func (m *LedgerMetrics) RecordPaymentChange(status string) {
	m.paymentChanges.WithLabelValues(status).Inc()
}

// RecordOrderCancelled увеличивает счётчик отмен.
func (m *LedgerMetrics) RecordOrderCancelled() {
	m.ordersCanceled.Inc()
}

// RecordNotificationSent учитывает доставленное уведомление.
func (m *LedgerMetrics) RecordNotificationSent(notificationType string) {
	m.notificationsSent.WithLabelValues(notificationType).Inc()
}

// RecordNotificationFailed учитывает уведомление, которое не удалось доставить.
func (m *LedgerMetrics) RecordNotificationFailed() {
	m.notificationsFailed.Inc()
}

// RecordHookDuration записывает время выполнения побочных эффектов шага.
func (m *LedgerMetrics) RecordHookDuration(step string, duration time.Duration) {
	m.hookDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *LedgerMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LedgerMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
