package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/directory"
	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
	"github.com/vladislavdragonenkov/watermate/internal/service/notifications"
	"github.com/vladislavdragonenkov/watermate/internal/service/orders"
	"github.com/vladislavdragonenkov/watermate/internal/storage/memory"
)

type fixture struct {
	orders        *orders.Ledger
	notifications *notifications.Ledger
	timeline      domain.TimelineRepository
	outbox        *memory.OutboxRepository
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("component", "test")
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	catalog := directory.NewSeeded()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	inbox := notifications.NewLedger(memory.NewNotificationRepository(), quietLogger())

	coordinator := NewCoordinator(inbox, catalog,
		WithTimeline(timeline),
		WithOutbox(outbox),
		WithMetrics(metrics.NewLedgerMetricsWithRegisterer(prometheus.NewRegistry())),
		WithLogger(quietLogger()),
	)
	ledger := orders.NewLedger(memory.NewOrderRepository(), catalog, timeline,
		orders.WithObserver(coordinator),
		orders.WithLogger(quietLogger()),
	)

	return fixture{orders: ledger, notifications: inbox, timeline: timeline, outbox: outbox}
}

func (f fixture) place(t *testing.T) domain.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), domain.CreateOrderInput{
		ClientID:      "client-1",
		ShopID:        "shop-1",
		Litres:        20,
		PaymentMethod: domain.PaymentMethodMpesa,
		DeliveryLocation: domain.Location{
			Latitude: -1.2921, Longitude: 36.8219, Address: "Nairobi CBD",
		},
	})
	require.NoError(t, err)
	return order
}

func (f fixture) inbox(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	list, err := f.notifications.List(context.Background(), userID, false)
	require.NoError(t, err)
	return list
}

func TestCoordinator_OrderPlacedNotifiesShopOwner(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	owner := f.inbox(t, "shop-1")
	require.Len(t, owner, 1)
	assert.Equal(t, "New Order Received", owner[0].Title)
	assert.Equal(t, "New order for 20L from Peter Kimani", owner[0].Message)
	assert.Equal(t, domain.NotificationTypeOrder, owner[0].Type)
	assert.Equal(t, "/shop/orders/"+order.ID, owner[0].ActionURL)
	assert.False(t, owner[0].IsRead)

	assert.Empty(t, f.inbox(t, "client-1"))
}

func TestCoordinator_StatusChangeNotifiesClient(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)

	_, err := f.orders.UpdateOrderStatus(context.Background(), order.ID, domain.OrderStatusOutForDelivery)
	require.NoError(t, err)

	client := f.inbox(t, "client-1")
	require.Len(t, client, 1)
	assert.Equal(t, "Order Status Updated", client[0].Title)
	assert.Equal(t, "Your order is now out for delivery", client[0].Message)
	assert.Equal(t, "/client/orders/"+order.ID, client[0].ActionURL)
}

func TestCoordinator_PaymentNotificationOnlyWhenCompleted(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	ctx := context.Background()

	_, err := f.orders.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusFailed, "")
	require.NoError(t, err)
	assert.Empty(t, f.inbox(t, "client-1"))

	_, err = f.orders.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusCompleted, "TXN123")
	require.NoError(t, err)

	client := f.inbox(t, "client-1")
	require.Len(t, client, 1)
	assert.Equal(t, "Payment Confirmed", client[0].Title)
	assert.Equal(t, "Payment of KES 100 has been confirmed", client[0].Message)
	assert.Equal(t, domain.NotificationTypePayment, client[0].Type)
}

func TestCoordinator_CancelNotifiesClientWithReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withReason := f.place(t)
	_, err := f.orders.CancelOrder(ctx, withReason.ID, "Out of stock")
	require.NoError(t, err)

	withoutReason := f.place(t)
	_, err = f.orders.CancelOrder(ctx, withoutReason.ID, "  ")
	require.NoError(t, err)

	client := f.inbox(t, "client-1")
	require.Len(t, client, 2)
	assert.Equal(t, "Your order has been cancelled.", client[0].Message)
	assert.Equal(t, "Your order has been cancelled. Out of stock", client[1].Message)
	assert.Equal(t, "Order Cancelled", client[1].Title)
}

func TestCoordinator_RecordsTimelineAndOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t)

	_, err := f.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = f.orders.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusCompleted, "TXN123")
	require.NoError(t, err)
	_, err = f.orders.CancelOrder(ctx, order.ID, "changed my mind")
	require.NoError(t, err)

	events, err := f.orders.Timeline(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, domain.TimelineOrderPlaced, events[0].Type)
	assert.Equal(t, domain.TimelineStatusChanged, events[1].Type)
	assert.Equal(t, "confirmed", events[1].Reason)
	assert.Equal(t, domain.TimelinePaymentChanged, events[2].Type)
	assert.Equal(t, domain.TimelineOrderCancelled, events[3].Type)
	assert.Equal(t, "changed my mind", events[3].Reason)

	pending := f.outbox.Pending()
	require.Len(t, pending, 4)
	wantTypes := []kafka.EventType{
		kafka.EventTypeOrderCreated,
		kafka.EventTypeOrderStatusChanged,
		kafka.EventTypeOrderPaymentChanged,
		kafka.EventTypeOrderCancelled,
	}
	for i, msg := range pending {
		assert.Equal(t, string(wantTypes[i]), msg.EventType)
		assert.Equal(t, "order", msg.AggregateType)
		assert.Equal(t, order.ID, msg.AggregateID)
	}

	var statusEvent kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[1].Payload, &statusEvent))
	assert.Equal(t, "pending", statusEvent.PreviousStatus)
	assert.Equal(t, "confirmed", statusEvent.Status)
	assert.Equal(t, int64(10000), statusEvent.TotalAmountMinor)

	assert.Empty(t, statusEvent.PreviousPayment)

	var paymentEvent kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[2].Payload, &paymentEvent))
	assert.Equal(t, "pending", paymentEvent.PreviousPayment)
	assert.Equal(t, "completed", paymentEvent.PaymentStatus)
	assert.Empty(t, paymentEvent.PreviousStatus)
	assert.Equal(t, "confirmed", paymentEvent.Status)

	var cancelEvent kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[3].Payload, &cancelEvent))
	assert.Equal(t, "TXN123", cancelEvent.TransactionRef)
	assert.Equal(t, "changed my mind", cancelEvent.Reason)
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Add(context.Context, domain.NewNotification) (domain.Notification, error) {
	f.calls++
	return domain.Notification{}, errors.New("inbox unavailable")
}

func TestCoordinator_NotificationFailureDoesNotAffectOrder(t *testing.T) {
	notifier := &failingNotifier{}
	catalog := directory.NewSeeded()
	timeline := memory.NewTimelineRepository()
	coordinator := NewCoordinator(notifier, catalog, WithTimeline(timeline), WithLogger(quietLogger()))
	ledger := orders.NewLedger(memory.NewOrderRepository(), catalog, timeline,
		orders.WithObserver(coordinator),
		orders.WithLogger(quietLogger()),
	)
	ctx := context.Background()

	order, err := ledger.CreateOrder(ctx, domain.CreateOrderInput{
		ClientID: "client-2", ShopID: "shop-2", Litres: 20, PaymentMethod: domain.PaymentMethodCashOnDelivery,
	})
	require.NoError(t, err)
	updated, err := ledger.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, 2, notifier.calls)

	events, err := timeline.List(order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCoordinator_UnknownShopOwnerSkipsNotification(t *testing.T) {
	notifier := &failingNotifier{}
	catalog := directory.New(nil, []domain.Shop{{ID: "shop-x", Name: "Orphan", IsActive: true}})
	coordinator := NewCoordinator(notifier, catalog, WithLogger(quietLogger()))

	coordinator.OrderPlaced(context.Background(), domain.Order{
		ID: "order-1", ShopID: "shop-x", UpdatedAt: time.Now(),
	})
	assert.Zero(t, notifier.calls)
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		10000: "100",
		10050: "100.50",
		5:     "0.05",
		0:     "0",
		-250:  "-2.50",
	}
	for minor, want := range cases {
		assert.Equal(t, want, formatAmount(minor), "minor=%d", minor)
	}
}
