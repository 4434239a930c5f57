package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated        EventType = "order.created"
	EventTypeOrderStatusChanged  EventType = "order.status_changed"
	EventTypeOrderPaymentChanged EventType = "order.payment_changed"
	EventTypeOrderCancelled      EventType = "order.cancelled"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "watermate.order.events"
	TopicDeadLetterQueue = "watermate.order.events.dlq"
)

// Kafka headers сообщений outbox.
const (
	HeaderEventType   = "x-event-type"
	HeaderAggregateID = "x-aggregate-id"
	HeaderOutboxID    = "x-outbox-id"
)

// OrderEvent — payload события заказа в outbox и в Kafka.
type OrderEvent struct {
	EventType        EventType `json:"event_type"`
	OrderID          string    `json:"order_id"`
	ClientID         string    `json:"client_id"`
	ShopID           string    `json:"shop_id"`
	Status           string    `json:"status"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	PaymentStatus    string    `json:"payment_status"`
	PreviousPayment  string    `json:"previous_payment_status,omitempty"`
	TransactionRef   string    `json:"transaction_ref,omitempty"`
	Litres           int       `json:"litres"`
	TotalAmountMinor int64     `json:"total_amount_minor"`
	Currency         string    `json:"currency"`
	Reason           string    `json:"reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
