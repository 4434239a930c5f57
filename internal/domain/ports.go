package domain

import (
	"context"
	"slices"
	"time"
)

// Directory — справочник пользователей и каталог магазинов.
type Directory interface {
	// FindByPhone ищет пользователя по телефону или возвращает ErrUserNotFound.
	FindByPhone(phone string) (User, error)
	GetUser(id string) (User, error)
	// GetShop возвращает магазин или ErrShopNotFound.
	GetShop(id string) (Shop, error)
	ShopsByOwner(ownerID string) []Shop
	ActiveShops() []Shop
}

// OrderObserver получает уведомления о зафиксированных изменениях заказа.
// Реализация не может откатить изменение: ошибки остаются внутри неё.
type OrderObserver interface {
	OrderPlaced(ctx context.Context, order Order)
	StatusChanged(ctx context.Context, prev, next Order)
	PaymentChanged(ctx context.Context, prev, next Order)
	OrderCancelled(ctx context.Context, order Order, reason string)
}

// LifecycleStep задаёт константы шагов для метрик/логов.
type LifecycleStep string

const (
	LifecycleStepPlaced    LifecycleStep = "placed"
	LifecycleStepStatus    LifecycleStep = "status"
	LifecycleStepPayment   LifecycleStep = "payment"
	LifecycleStepCancelled LifecycleStep = "cancelled"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	// PullPending возвращает старейшие pending-сообщения под фильтр.
	PullPending(filter OutboxFilter) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// DefaultOutboxPullLimit применяется, когда OutboxFilter.Limit не задан.
const DefaultOutboxPullLimit = 100

// OutboxFilter ограничивает выборку pending-сообщений. Пустое поле не фильтрует.
type OutboxFilter struct {
	Limit       int
	AggregateID string
	EventTypes  []string
}

// PullLimit возвращает Limit или DefaultOutboxPullLimit.
func (f OutboxFilter) PullLimit() int {
	if f.Limit <= 0 {
		return DefaultOutboxPullLimit
	}
	return f.Limit
}

// Matches проверяет сообщение без учёта Limit.
func (f OutboxFilter) Matches(msg OutboxMessage) bool {
	if f.AggregateID != "" && msg.AggregateID != f.AggregateID {
		return false
	}
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, msg.EventType)
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
