package domain

import (
	"fmt"
	"slices"
	"time"
)

// Типы событий истории заказа.
const (
	TimelineOrderPlaced    = "OrderPlaced"
	TimelineStatusChanged  = "OrderStatusChanged"
	TimelinePaymentChanged = "OrderPaymentChanged"
	TimelineOrderCancelled = "OrderCancelled"
)

var timelineTypes = []string{
	TimelineOrderPlaced,
	TimelineStatusChanged,
	TimelinePaymentChanged,
	TimelineOrderCancelled,
}

// TimelineTypes возвращает все типы событий истории.
func TimelineTypes() []string {
	return slices.Clone(timelineTypes)
}

// TimelineEvent описывает событие в жизненном цикле заказа.
// Reason хранит новый статус или причину отмены.
type TimelineEvent struct {
	OrderID  string    `json:"orderId"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

// Validate проверяет, что событие привязано к заказу и имеет известный тип.
func (e TimelineEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("%w: order id is required", ErrTimelineEventInvalid)
	}
	if !slices.Contains(timelineTypes, e.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrTimelineEventInvalid, e.Type)
	}
	return nil
}
