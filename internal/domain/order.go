package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCurrency — валюта всех заказов маркетплейса (кенийский шиллинг).
const DefaultCurrency = "KES"

// MaxOrderLitres ограничивает объём одного заказа; укладывается в INTEGER колонки orders.litres.
const MaxOrderLitres = 1_000_000

// OrderStatus описывает жизненный цикл заказа доставки воды.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан клиентом и ждёт подтверждения магазином.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — магазин принял заказ.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing — вода набирается и упаковывается.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusOutForDelivery — курьер в пути.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ передан клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус входит в перечень поддерживаемых.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Label возвращает статус в человекочитаемом виде для уведомлений ("out for delivery").
func (s OrderStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// AllowedTransitions задаёт допустимые переходы статусов заказа.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusCancelled:      {OrderStatusCancelled},
	OrderStatusDelivered:      {},
}

var transitionSet = buildTransitionSet(AllowedTransitions)

func buildTransitionSet(src map[OrderStatus][]OrderStatus) map[OrderStatus]map[OrderStatus]struct{} {
	out := make(map[OrderStatus]map[OrderStatus]struct{}, len(src))
	for from, targets := range src {
		set := make(map[OrderStatus]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		out[from] = set
	}
	return out
}

// CanTransition сообщает, есть ли переход from -> to в таблице переходов.
func CanTransition(from, to OrderStatus) bool {
	targets, ok := transitionSet[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Location — точка на карте с адресом доставки.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Floor     string  `json:"floor,omitempty"`
	Door      string  `json:"door,omitempty"`
}

// Order — заказ воды от клиента к магазину.
//
// ClientName, ClientPhone и ShopName фиксируются при создании и дальше не синхронизируются.
// TotalAmountMinor считается один раз: litres * цена магазина за литр.
type Order struct {
	ID               string        `json:"id"`
	ClientID         string        `json:"clientId"`
	ShopID           string        `json:"shopId"`
	ClientName       string        `json:"clientName"`
	ClientPhone      string        `json:"clientPhone"`
	ShopName         string        `json:"shopName"`
	Litres           int           `json:"litres"`
	TotalAmountMinor int64         `json:"totalAmountMinor"`
	Currency         string        `json:"currency"`
	Status           OrderStatus   `json:"status"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	TransactionRef   string        `json:"transactionRef,omitempty"`
	OrderDate        time.Time     `json:"orderDate"`
	DeliveryDate     *time.Time    `json:"deliveryDate,omitempty"`
	DeliveryLocation Location      `json:"deliveryLocation"`
	Notes            string        `json:"notes,omitempty"`
	Version          int64         `json:"version"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// CreateOrderInput — данные, которые клиент передаёт при оформлении заказа.
// ID, даты и статус всегда назначает ledger.
type CreateOrderInput struct {
	ClientID         string
	ShopID           string
	ClientName       string
	ClientPhone      string
	ShopName         string
	Litres           int
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	DeliveryLocation Location
	Notes            string
}

// Validate проверяет поля, не зависящие от каталога магазинов.
func (in CreateOrderInput) Validate() []error {
	var errs []error

	if strings.TrimSpace(in.ClientID) == "" {
		errs = append(errs, ErrClientRequired)
	}
	if strings.TrimSpace(in.ShopID) == "" {
		errs = append(errs, ErrShopRequired)
	}
	switch {
	case in.Litres <= 0:
		errs = append(errs, ErrLitresInvalid)
	case in.Litres > MaxOrderLitres:
		errs = append(errs, ErrLitresTooLarge)
	}
	if !in.PaymentMethod.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}
	if in.PaymentStatus != "" && !in.PaymentStatus.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrPaymentStatusInvalid, in.PaymentStatus))
	}

	return errs
}

// OrderFilter задаёт выборку заказов для списков и админского поиска.
type OrderFilter struct {
	ClientID      string
	ShopID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	// Query ищет подстроку (без учёта регистра) в id, имени клиента и названии магазина.
	Query string
	Limit int
}

// Match сообщает, подходит ли заказ под фильтр.
func (f OrderFilter) Match(o Order) bool {
	switch {
	case f.ClientID != "" && o.ClientID != f.ClientID:
		return false
	case f.ShopID != "" && o.ShopID != f.ShopID:
		return false
	case f.Status != "" && o.Status != f.Status:
		return false
	case f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus:
		return false
	case f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod:
		return false
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.ID), query) ||
		strings.Contains(strings.ToLower(o.ClientName), query) ||
		strings.Contains(strings.ToLower(o.ShopName), query)
}

// IsOpenForShop — заказ ещё требует действий со стороны магазина.
func (o Order) IsOpenForShop() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing:
		return true
	default:
		return false
	}
}
