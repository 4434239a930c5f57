// Package orders реализует ledger заказов: создание, смену статусов доставки и оплаты,
// отмену и выборки для клиента, магазина и администратора.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// Ledger — авторитетная коллекция заказов.
//
// Все мутации сериализуются внутренним mutex. Побочные эффекты (уведомления, timeline,
// outbox) выполняет observer уже после фиксации изменения, вне блокировки.
type Ledger struct {
	repo      domain.OrderRepository
	directory domain.Directory
	timeline  domain.TimelineRepository
	observer  domain.OrderObserver
	logger    *log.Entry
	strict    bool
	now       func() time.Time

	mu sync.Mutex
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithObserver подключает обработчик изменений заказа.
func WithObserver(observer domain.OrderObserver) Option {
	return func(l *Ledger) {
		if observer != nil {
			l.observer = observer
		}
	}
}

// WithStrictTransitions включает отказ в переходах, которых нет в таблице переходов.
func WithStrictTransitions(strict bool) Option {
	return func(l *Ledger) {
		l.strict = strict
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger конструирует ledger заказов.
func NewLedger(repo domain.OrderRepository, directory domain.Directory, timeline domain.TimelineRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:      repo,
		directory: directory,
		timeline:  timeline,
		observer:  noopObserver{},
		logger:    log.New().WithField("component", "order-ledger"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateOrder оформляет новый заказ в статусе pending.
// Сумма считается по цене магазина из каталога; владелец магазина получает уведомление.
func (l *Ledger) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (domain.Order, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	shop, err := l.directory.GetShop(in.ShopID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrShopUnknown, in.ShopID)
		}
		return domain.Order{}, domain.OperationFailed("resolve shop", err)
	}
	if !shop.IsActive {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrShopInactive, shop.ID)
	}
	if in.Litres < shop.MinimumOrderLitres {
		return domain.Order{}, fmt.Errorf("%w: %d < %d", domain.ErrBelowMinimumOrder, in.Litres, shop.MinimumOrderLitres)
	}

	total, err := orderTotal(in.Litres, shop.PricePerLitreMinor)
	if err != nil {
		return domain.Order{}, err
	}

	clientName, clientPhone := in.ClientName, in.ClientPhone
	if clientName == "" || clientPhone == "" {
		if client, err := l.directory.GetUser(in.ClientID); err == nil {
			if clientName == "" {
				clientName = client.Name
			}
			if clientPhone == "" {
				clientPhone = client.Phone
			}
		}
	}
	shopName := in.ShopName
	if shopName == "" {
		shopName = shop.Name
	}
	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusPending
	}

	now := l.now()
	order := domain.Order{
		ID:               "order-" + uuid.NewString(),
		ClientID:         in.ClientID,
		ShopID:           shop.ID,
		ClientName:       clientName,
		ClientPhone:      clientPhone,
		ShopName:         shopName,
		Litres:           in.Litres,
		TotalAmountMinor: total,
		Currency:         domain.DefaultCurrency,
		Status:           domain.OrderStatusPending,
		PaymentMethod:    in.PaymentMethod,
		PaymentStatus:    paymentStatus,
		OrderDate:        now,
		DeliveryLocation: in.DeliveryLocation,
		Notes:            in.Notes,
		UpdatedAt:        now,
	}

	l.mu.Lock()
	err = l.repo.Create(order)
	l.mu.Unlock()
	if err != nil {
		l.logger.WithError(err).WithField("order_id", order.ID).Error("failed to create order")
		return domain.Order{}, domain.OperationFailed("create order", err)
	}

	l.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"shop_id":  order.ShopID,
		"litres":   order.Litres,
	}).Info("order created")

	l.observer.OrderPlaced(ctx, order)
	return order, nil
}

// UpdateOrderStatus меняет статус доставки. Переход в delivered каждый раз
// проставляет DeliveryDate; остальные статусы её не трогают.
// Отсутствующий заказ даёт ErrOrderNotFound раньше проверки статуса.
func (l *Ledger) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	prev, next, err := l.mutate(orderID, func(o *domain.Order, now time.Time) error {
		if !status.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrOrderStatusUnknown, status)
		}
		if err := l.checkTransition(o, status); err != nil {
			return err
		}
		o.Status = status
		if status == domain.OrderStatusDelivered {
			delivered := now
			o.DeliveryDate = &delivered
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	l.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     prev.Status,
		"to":       next.Status,
	}).Info("order status updated")

	l.observer.StatusChanged(ctx, prev, next)
	return next, nil
}

// UpdatePaymentStatus меняет статус оплаты. Ссылка на транзакцию перезаписывается,
// только если передана непустая.
func (l *Ledger) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, transactionRef string) (domain.Order, error) {
	prev, next, err := l.mutate(orderID, func(o *domain.Order, _ time.Time) error {
		if !status.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrPaymentStatusUnknown, status)
		}
		o.PaymentStatus = status
		if ref := strings.TrimSpace(transactionRef); ref != "" {
			o.TransactionRef = ref
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	l.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     prev.PaymentStatus,
		"to":       next.PaymentStatus,
	}).Info("order payment status updated")

	l.observer.PaymentChanged(ctx, prev, next)
	return next, nil
}

// CancelOrder отменяет заказ и перезаписывает заметки причиной отмены.
func (l *Ledger) CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)

	_, next, err := l.mutate(orderID, func(o *domain.Order, _ time.Time) error {
		if err := l.checkTransition(o, domain.OrderStatusCancelled); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCancelled
		o.Notes = cancellationNote(reason)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	l.logger.WithFields(log.Fields{
		"order_id": orderID,
		"reason":   reason,
	}).Info("order cancelled")

	l.observer.OrderCancelled(ctx, next, reason)
	return next, nil
}

// GetOrder возвращает заказ или ошибку вида ErrNotFound.
func (l *Ledger) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, err := l.repo.Get(orderID)
	if err != nil {
		return domain.Order{}, domain.OperationFailed("get order", err)
	}
	return order, nil
}

// ListByShop возвращает заказы магазина, новые первыми.
func (l *Ledger) ListByShop(ctx context.Context, shopID string) ([]domain.Order, error) {
	return l.List(ctx, domain.OrderFilter{ShopID: shopID})
}

// ListByClient возвращает заказы клиента, новые первыми.
func (l *Ledger) ListByClient(ctx context.Context, clientID string) ([]domain.Order, error) {
	return l.List(ctx, domain.OrderFilter{ClientID: clientID})
}

// List возвращает заказы под фильтр.
func (l *Ledger) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders, err := l.repo.List(filter)
	if err != nil {
		return nil, domain.OperationFailed("list orders", err)
	}
	return orders, nil
}

// Timeline возвращает историю заказа в хронологическом порядке.
func (l *Ledger) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := l.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if l.timeline == nil {
		return nil, nil
	}
	events, err := l.timeline.List(orderID)
	if err != nil {
		return nil, domain.OperationFailed("list timeline", err)
	}
	return events, nil
}

// PaymentSummary считает сводку по оплатам заказов под фильтр. Limit фильтра игнорируется.
func (l *Ledger) PaymentSummary(ctx context.Context, filter domain.OrderFilter) (domain.PaymentSummary, error) {
	filter.Limit = 0
	orders, err := l.List(ctx, filter)
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	return domain.SummarizePayments(orders), nil
}

// mutate читает заказ, применяет изменение и сохраняет его с проверкой версии.
// Возвращает состояние до и после изменения.
func (l *Ledger) mutate(orderID string, apply func(o *domain.Order, now time.Time) error) (domain.Order, domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, err := l.repo.Get(orderID)
	if err != nil {
		return domain.Order{}, domain.Order{}, domain.OperationFailed("load order", err)
	}

	now := l.now()
	next := prev
	if prev.DeliveryDate != nil {
		d := *prev.DeliveryDate
		next.DeliveryDate = &d
	}
	if err := apply(&next, now); err != nil {
		return domain.Order{}, domain.Order{}, err
	}
	next.UpdatedAt = now

	if err := l.repo.Save(next); err != nil {
		l.logger.WithError(err).WithField("order_id", orderID).Error("failed to save order")
		return domain.Order{}, domain.Order{}, domain.OperationFailed("save order", err)
	}
	next.Version++
	return prev, next, nil
}

// checkTransition отклоняет переход в strict-режиме; в обычном режиме только предупреждает.
func (l *Ledger) checkTransition(o *domain.Order, to domain.OrderStatus) error {
	if domain.CanTransition(o.Status, to) {
		return nil
	}
	if l.strict {
		return fmt.Errorf("%w: %s -> %s", domain.ErrTransitionNotAllowed, o.Status, to)
	}
	l.logger.WithFields(log.Fields{
		"order_id": o.ID,
		"from":     o.Status,
		"to":       to,
	}).Warn("order status change outside of transition table")
	return nil
}

// orderTotal считает litres * цену за литр без переполнения int64.
func orderTotal(litres int, pricePerLitre int64) (int64, error) {
	if pricePerLitre < 0 {
		return 0, fmt.Errorf("%w: negative price per litre %d", domain.ErrAmountOverflow, pricePerLitre)
	}
	if pricePerLitre > 0 && int64(litres) > math.MaxInt64/pricePerLitre {
		return 0, fmt.Errorf("%w: %d L at %d", domain.ErrAmountOverflow, litres, pricePerLitre)
	}
	return int64(litres) * pricePerLitre, nil
}

func cancellationNote(reason string) string {
	if reason == "" {
		return "Cancelled"
	}
	return "Cancelled: " + reason
}

type noopObserver struct{}

func (noopObserver) OrderPlaced(context.Context, domain.Order)                  {}
func (noopObserver) StatusChanged(context.Context, domain.Order, domain.Order)  {}
func (noopObserver) PaymentChanged(context.Context, domain.Order, domain.Order) {}
func (noopObserver) OrderCancelled(context.Context, domain.Order, string)       {}
