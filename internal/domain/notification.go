package domain

import "time"

// NotificationType классифицирует уведомление для иконки и фильтров в UI.
type NotificationType string

const (
	NotificationTypeOrder     NotificationType = "order"
	NotificationTypePayment   NotificationType = "payment"
	NotificationTypeSystem    NotificationType = "system"
	NotificationTypePromotion NotificationType = "promotion"
)

// Valid проверяет поддерживаемость типа уведомления.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeOrder, NotificationTypePayment, NotificationTypeSystem, NotificationTypePromotion:
		return true
	default:
		return false
	}
}

// Notification — сообщение во входящих одного пользователя.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	ActionURL string           `json:"actionUrl,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewNotification — входные данные для добавления уведомления.
// ID, CreatedAt и IsRead назначает ledger.
type NewNotification struct {
	UserID    string
	Title     string
	Message   string
	Type      NotificationType
	ActionURL string
}
