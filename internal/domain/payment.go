package domain

// PaymentMethod — способ оплаты, выбранный клиентом при оформлении.
type PaymentMethod string

const (
	// PaymentMethodMpesa — оплата через M-Pesa.
	PaymentMethodMpesa PaymentMethod = "mpesa"
	// PaymentMethodCashOnDelivery — наличные курьеру.
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid проверяет поддерживаемость способа оплаты.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodMpesa || m == PaymentMethodCashOnDelivery
}

// PaymentStatus описывает состояние оплаты заказа. Не связан со статусом доставки.
type PaymentStatus string

const (
	// PaymentStatusPending — оплата ещё не поступила.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — оплата подтверждена.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — оплата не прошла.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid проверяет, что статус оплаты входит в перечень поддерживаемых.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentSummary — агрегаты по оплатам для админской панели.
type PaymentSummary struct {
	Currency         string                  `json:"currency"`
	TotalOrders      int                     `json:"totalOrders"`
	TotalAmountMinor int64                   `json:"totalAmountMinor"`
	CountByStatus    map[PaymentStatus]int   `json:"countByStatus"`
	RevenueByMethod  map[PaymentMethod]int64 `json:"revenueByMethod"`
	CompletedMinor   int64                   `json:"completedMinor"`
	PendingMinor     int64                   `json:"pendingMinor"`
}

// SummarizePayments считает сводку по переданным заказам.
// Выручка по способу оплаты учитывает только завершённые оплаты.
func SummarizePayments(orders []Order) PaymentSummary {
	summary := PaymentSummary{
		Currency:        DefaultCurrency,
		CountByStatus:   make(map[PaymentStatus]int),
		RevenueByMethod: make(map[PaymentMethod]int64),
	}

	for _, o := range orders {
		summary.TotalOrders++
		summary.TotalAmountMinor += o.TotalAmountMinor
		summary.CountByStatus[o.PaymentStatus]++

		switch o.PaymentStatus {
		case PaymentStatusCompleted:
			summary.CompletedMinor += o.TotalAmountMinor
			summary.RevenueByMethod[o.PaymentMethod] += o.TotalAmountMinor
		case PaymentStatusPending:
			summary.PendingMinor += o.TotalAmountMinor
		}
	}

	return summary
}
