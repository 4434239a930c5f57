// Package lifecycle связывает изменения заказа с их последствиями: уведомлениями
// участникам, историей заказа, событиями outbox и метриками.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
)

const aggregateOrder = "order"

// Notifier доставляет уведомление во входящие пользователя.
type Notifier interface {
	Add(ctx context.Context, in domain.NewNotification) (domain.Notification, error)
}

// Coordinator реагирует на зафиксированные изменения заказа.
// Ни одна ошибка побочного эффекта не возвращается в ledger: всё логируется.
type Coordinator struct {
	notifier  Notifier
	directory domain.Directory
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	metrics   *metrics.LedgerMetrics
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithTimeline включает запись истории заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(c *Coordinator) {
		c.timeline = repo
	}
}

// WithOutbox включает постановку событий заказа в transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(c *Coordinator) {
		c.outbox = repo
	}
}

// WithMetrics подключает метрики жизненного цикла.
func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator создаёт координатор. directory нужен для поиска владельца магазина.
func NewCoordinator(notifier Notifier, directory domain.Directory, opts ...Option) *Coordinator {
	c := &Coordinator{
		notifier:  notifier,
		directory: directory,
		logger:    log.WithField("component", "lifecycle"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrderPlaced уведомляет владельца магазина о новом заказе.
func (c *Coordinator) OrderPlaced(ctx context.Context, order domain.Order) {
	defer c.observe(domain.LifecycleStepPlaced, time.Now())

	if c.metrics != nil {
		c.metrics.RecordOrderCreated()
	}

	if ownerID, ok := c.shopOwner(order); ok {
		c.notify(ctx, order.ID, orderPlacedNotification(ownerID, order))
	}
	c.appendTimeline(order, domain.TimelineOrderPlaced, string(order.Status))
	c.enqueue(order, kafka.EventTypeOrderCreated, eventChange{})
}

// StatusChanged уведомляет клиента о новом статусе доставки.
func (c *Coordinator) StatusChanged(ctx context.Context, prev, next domain.Order) {
	defer c.observe(domain.LifecycleStepStatus, time.Now())

	if c.metrics != nil {
		c.metrics.RecordStatusChange(string(next.Status))
	}

	c.notify(ctx, next.ID, statusChangedNotification(next))
	c.appendTimeline(next, domain.TimelineStatusChanged, string(next.Status))
	c.enqueue(next, kafka.EventTypeOrderStatusChanged, eventChange{previousStatus: prev.Status})
}

// PaymentChanged уведомляет клиента только о подтверждённой оплате.
// История и outbox получают событие при любой смене статуса оплаты.
func (c *Coordinator) PaymentChanged(ctx context.Context, prev, next domain.Order) {
	defer c.observe(domain.LifecycleStepPayment, time.Now())

	if c.metrics != nil {
		c.metrics.RecordPaymentChange(string(next.PaymentStatus))
	}

	if next.PaymentStatus == domain.PaymentStatusCompleted {
		c.notify(ctx, next.ID, paymentConfirmedNotification(next))
	}
	c.appendTimeline(next, domain.TimelinePaymentChanged, string(next.PaymentStatus))
	c.enqueue(next, kafka.EventTypeOrderPaymentChanged, eventChange{previousPayment: prev.PaymentStatus})
}

// OrderCancelled уведомляет клиента об отмене.
func (c *Coordinator) OrderCancelled(ctx context.Context, order domain.Order, reason string) {
	defer c.observe(domain.LifecycleStepCancelled, time.Now())

	if c.metrics != nil {
		c.metrics.RecordOrderCancelled()
	}

	c.notify(ctx, order.ID, orderCancelledNotification(order, reason))
	c.appendTimeline(order, domain.TimelineOrderCancelled, reason)
	c.enqueue(order, kafka.EventTypeOrderCancelled, eventChange{reason: reason})
}

func (c *Coordinator) shopOwner(order domain.Order) (string, bool) {
	if c.directory == nil {
		return "", false
	}
	shop, err := c.directory.GetShop(order.ShopID)
	if err != nil || shop.OwnerID == "" {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"shop_id":  order.ShopID,
		}).Warn("shop owner not resolved, notification skipped")
		if c.metrics != nil {
			c.metrics.RecordNotificationFailed()
		}
		return "", false
	}
	return shop.OwnerID, true
}

func (c *Coordinator) notify(ctx context.Context, orderID string, in domain.NewNotification) {
	if c.notifier == nil {
		return
	}
	if _, err := c.notifier.Add(ctx, in); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"user_id":  in.UserID,
		}).Error("deliver notification failed")
		if c.metrics != nil {
			c.metrics.RecordNotificationFailed()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.RecordNotificationSent(string(in.Type))
	}
}

func (c *Coordinator) appendTimeline(order domain.Order, eventType, reason string) {
	if c.timeline == nil {
		return
	}

	occurred := order.UpdatedAt
	if occurred.IsZero() {
		occurred = c.now()
	}
	err := c.timeline.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	})
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordTimelineEvent()
	}
}

// eventChange — то, что изменилось в заказе. Заполняется только поле своего события.
type eventChange struct {
	previousStatus  domain.OrderStatus
	previousPayment domain.PaymentStatus
	reason          string
}

func (c *Coordinator) enqueue(order domain.Order, eventType kafka.EventType, change eventChange) {
	if c.outbox == nil {
		return
	}

	timestamp := order.UpdatedAt
	if timestamp.IsZero() {
		timestamp = c.now()
	}
	data, err := json.Marshal(kafka.OrderEvent{
		EventType:        eventType,
		OrderID:          order.ID,
		ClientID:         order.ClientID,
		ShopID:           order.ShopID,
		Status:           string(order.Status),
		PreviousStatus:   string(change.previousStatus),
		PaymentStatus:    string(order.PaymentStatus),
		PreviousPayment:  string(change.previousPayment),
		TransactionRef:   order.TransactionRef,
		Litres:           order.Litres,
		TotalAmountMinor: order.TotalAmountMinor,
		Currency:         currencyOf(order),
		Reason:           change.reason,
		Timestamp:        timestamp,
	})
	if err != nil {
		c.logger.WithError(err).WithField("order_id", order.ID).Error("marshal order event failed")
		return
	}

	_, err = c.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	})
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue order event failed")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordOutboxEvent()
	}
}

func (c *Coordinator) observe(step domain.LifecycleStep, started time.Time) {
	if c.metrics != nil {
		c.metrics.RecordHookDuration(string(step), time.Since(started))
	}
}

var _ domain.OrderObserver = (*Coordinator)(nil)
