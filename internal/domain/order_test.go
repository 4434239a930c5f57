package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// helper для создания корректного ввода заказа.
func makeInput() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		ClientID:      "client-1",
		ShopID:        "shop-1",
		Litres:        20,
		PaymentMethod: domain.PaymentMethodMpesa,
		DeliveryLocation: domain.Location{
			Latitude:  -1.2921,
			Longitude: 36.8219,
			Address:   "Westlands, Nairobi",
		},
	}
}

func TestCreateOrderInputValidate_Ok(t *testing.T) {
	in := makeInput()
	if errs := in.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestCreateOrderInputValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(in *domain.CreateOrderInput)
		want error
	}{
		{
			name: "no client",
			mut:  func(in *domain.CreateOrderInput) { in.ClientID = " " },
			want: domain.ErrClientRequired,
		},
		{
			name: "no shop",
			mut:  func(in *domain.CreateOrderInput) { in.ShopID = "" },
			want: domain.ErrShopRequired,
		},
		{
			name: "zero litres",
			mut:  func(in *domain.CreateOrderInput) { in.Litres = 0 },
			want: domain.ErrLitresInvalid,
		},
		{
			name: "negative litres",
			mut:  func(in *domain.CreateOrderInput) { in.Litres = -5 },
			want: domain.ErrLitresInvalid,
		},
		{
			name: "litres above maximum",
			mut:  func(in *domain.CreateOrderInput) { in.Litres = domain.MaxOrderLitres + 1 },
			want: domain.ErrLitresTooLarge,
		},
		{
			name: "missing payment method",
			mut:  func(in *domain.CreateOrderInput) { in.PaymentMethod = "" },
			want: domain.ErrPaymentMethodInvalid,
		},
		{
			name: "unknown payment method",
			mut:  func(in *domain.CreateOrderInput) { in.PaymentMethod = "card" },
			want: domain.ErrPaymentMethodInvalid,
		},
		{
			name: "unknown payment status",
			mut:  func(in *domain.CreateOrderInput) { in.PaymentStatus = "settled" },
			want: domain.ErrPaymentStatusInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := makeInput()
			tc.mut(&in)
			errs := in.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected exactly one error, got %v", errs)
			}
			if !errors.Is(errs[0], tc.want) {
				t.Fatalf("unexpected error: got=%v want=%v", errs[0], tc.want)
			}
			if errors.Is(errs[0], domain.ErrInvalidTransition) {
				t.Fatalf("input error must not be a transition error: %v", errs[0])
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusDelivered, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusPreparing, true},
		{domain.OrderStatusPreparing, domain.OrderStatusOutForDelivery, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusCancelled, true},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatus("lost"), domain.OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderStatusLabel(t *testing.T) {
	if got := domain.OrderStatusOutForDelivery.Label(); got != "out for delivery" {
		t.Fatalf("unexpected label: %q", got)
	}
	if got := domain.OrderStatusDelivered.Label(); got != "delivered" {
		t.Fatalf("unexpected label: %q", got)
	}
}

func TestOrderFilterMatch(t *testing.T) {
	order := domain.Order{
		ID:            "order-abc",
		ClientID:      "client-1",
		ShopID:        "shop-1",
		ClientName:    "Peter Kimani",
		ShopName:      "Pure Water Westlands",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodMpesa,
		PaymentStatus: domain.PaymentStatusPending,
	}

	cases := []struct {
		name   string
		filter domain.OrderFilter
		want   bool
	}{
		{name: "empty", filter: domain.OrderFilter{}, want: true},
		{name: "client", filter: domain.OrderFilter{ClientID: "client-1"}, want: true},
		{name: "other shop", filter: domain.OrderFilter{ShopID: "shop-2"}, want: false},
		{name: "status", filter: domain.OrderFilter{Status: domain.OrderStatusDelivered}, want: false},
		{name: "payment", filter: domain.OrderFilter{PaymentStatus: domain.PaymentStatusPending}, want: true},
		{name: "method", filter: domain.OrderFilter{PaymentMethod: domain.PaymentMethodCashOnDelivery}, want: false},
		{name: "query by client name", filter: domain.OrderFilter{Query: "kimani"}, want: true},
		{name: "query by shop name", filter: domain.OrderFilter{Query: "WESTLANDS"}, want: true},
		{name: "query by id", filter: domain.OrderFilter{Query: "abc"}, want: true},
		{name: "query miss", filter: domain.OrderFilter{Query: "karen"}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(order); got != tc.want {
				t.Fatalf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrderIsOpenForShop(t *testing.T) {
	open := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusPreparing}
	for _, s := range open {
		if !(domain.Order{Status: s}).IsOpenForShop() {
			t.Errorf("status %s should be open for shop", s)
		}
	}
	if (domain.Order{Status: domain.OrderStatusOutForDelivery}).IsOpenForShop() {
		t.Error("out_for_delivery should not be open for shop")
	}
}
