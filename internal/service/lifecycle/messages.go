package lifecycle

import (
	"fmt"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func orderPlacedNotification(ownerID string, order domain.Order) domain.NewNotification {
	return domain.NewNotification{
		UserID:    ownerID,
		Title:     "New Order Received",
		Message:   fmt.Sprintf("New order for %dL from %s", order.Litres, order.ClientName),
		Type:      domain.NotificationTypeOrder,
		ActionURL: "/shop/orders/" + order.ID,
	}
}

func statusChangedNotification(order domain.Order) domain.NewNotification {
	return domain.NewNotification{
		UserID:    order.ClientID,
		Title:     "Order Status Updated",
		Message:   "Your order is now " + order.Status.Label(),
		Type:      domain.NotificationTypeOrder,
		ActionURL: clientOrderURL(order.ID),
	}
}

func paymentConfirmedNotification(order domain.Order) domain.NewNotification {
	return domain.NewNotification{
		UserID:    order.ClientID,
		Title:     "Payment Confirmed",
		Message:   fmt.Sprintf("Payment of %s %s has been confirmed", currencyOf(order), formatAmount(order.TotalAmountMinor)),
		Type:      domain.NotificationTypePayment,
		ActionURL: clientOrderURL(order.ID),
	}
}

func orderCancelledNotification(order domain.Order, reason string) domain.NewNotification {
	message := "Your order has been cancelled."
	if reason != "" {
		message += " " + reason
	}
	return domain.NewNotification{
		UserID:    order.ClientID,
		Title:     "Order Cancelled",
		Message:   message,
		Type:      domain.NotificationTypeOrder,
		ActionURL: clientOrderURL(order.ID),
	}
}

func clientOrderURL(orderID string) string {
	return "/client/orders/" + orderID
}

func currencyOf(order domain.Order) string {
	if order.Currency == "" {
		return domain.DefaultCurrency
	}
	return order.Currency
}

// formatAmount печатает сумму в основных единицах: 10000 -> "100", 10050 -> "100.50".
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole, cents := minor/100, minor%100
	if cents == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, cents)
}
