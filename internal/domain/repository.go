package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderVersionConflict, если ID уже занят.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает заказы под фильтр, новые первыми.
	List(filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// NotificationRepository хранит уведомления всех пользователей.
type NotificationRepository interface {
	// Add сохраняет новое уведомление в начало коллекции.
	Add(n Notification) error
	Get(id string) (Notification, error)
	// List возвращает уведомления пользователя, новые первыми.
	List(userID string, unreadOnly bool) ([]Notification, error)
	// MarkRead помечает уведомление прочитанным или возвращает ErrNotificationNotFound.
	MarkRead(id string) error
	// MarkAllRead помечает прочитанными все уведомления пользователя и возвращает их число.
	MarkAllRead(userID string) (int, error)
	// Delete удаляет уведомление или возвращает ErrNotificationNotFound.
	Delete(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, method, requestHash string, expiresAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, response []byte) error
	MarkFailed(key string, response []byte, statusCode int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// BlobStore хранит сериализованное состояние под строковым ключом.
type BlobStore interface {
	// Load возвращает blob или ErrBlobNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
