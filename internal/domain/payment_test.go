package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func TestPaymentMethodValid(t *testing.T) {
	if !domain.PaymentMethodMpesa.Valid() || !domain.PaymentMethodCashOnDelivery.Valid() {
		t.Fatal("known payment methods must be valid")
	}
	if domain.PaymentMethod("card").Valid() {
		t.Fatal("card must not be a valid payment method")
	}
}

func TestSummarizePayments(t *testing.T) {
	orders := []domain.Order{
		{TotalAmountMinor: 10000, PaymentMethod: domain.PaymentMethodMpesa, PaymentStatus: domain.PaymentStatusCompleted},
		{TotalAmountMinor: 6750, PaymentMethod: domain.PaymentMethodCashOnDelivery, PaymentStatus: domain.PaymentStatusCompleted},
		{TotalAmountMinor: 5000, PaymentMethod: domain.PaymentMethodMpesa, PaymentStatus: domain.PaymentStatusPending},
		{TotalAmountMinor: 2000, PaymentMethod: domain.PaymentMethodMpesa, PaymentStatus: domain.PaymentStatusFailed},
	}

	summary := domain.SummarizePayments(orders)

	if summary.TotalOrders != 4 {
		t.Fatalf("unexpected total orders: %d", summary.TotalOrders)
	}
	if summary.TotalAmountMinor != 23750 {
		t.Fatalf("unexpected total amount: %d", summary.TotalAmountMinor)
	}
	if summary.CompletedMinor != 16750 || summary.PendingMinor != 5000 {
		t.Fatalf("unexpected completed/pending: %d/%d", summary.CompletedMinor, summary.PendingMinor)
	}
	if summary.CountByStatus[domain.PaymentStatusCompleted] != 2 {
		t.Fatalf("unexpected completed count: %d", summary.CountByStatus[domain.PaymentStatusCompleted])
	}
	if summary.RevenueByMethod[domain.PaymentMethodMpesa] != 10000 {
		t.Fatalf("unexpected mpesa revenue: %d", summary.RevenueByMethod[domain.PaymentMethodMpesa])
	}
	if summary.RevenueByMethod[domain.PaymentMethodCashOnDelivery] != 6750 {
		t.Fatalf("unexpected cash revenue: %d", summary.RevenueByMethod[domain.PaymentMethodCashOnDelivery])
	}
	if summary.Currency != domain.DefaultCurrency {
		t.Fatalf("unexpected currency: %s", summary.Currency)
	}
}
