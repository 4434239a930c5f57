// Package notifications реализует входящие уведомления пользователей.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// Ledger — коллекция уведомлений всех пользователей с учётом прочитанного.
// Число непрочитанных всегда считается по коллекции и не хранится отдельно.
type Ledger struct {
	repo   domain.NotificationRepository
	logger *log.Entry
	now    func() time.Time
}

// NewLedger конструирует ledger уведомлений.
func NewLedger(repo domain.NotificationRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "notification-ledger")
	}
	return &Ledger{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add создаёт непрочитанное уведомление и кладёт его в начало коллекции.
func (l *Ledger) Add(_ context.Context, in domain.NewNotification) (domain.Notification, error) {
	n := domain.Notification{
		ID:        "notif-" + uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		ActionURL: in.ActionURL,
		IsRead:    false,
		CreatedAt: l.now(),
	}
	if !n.Type.Valid() {
		n.Type = domain.NotificationTypeSystem
	}

	if err := l.repo.Add(n); err != nil {
		return domain.Notification{}, domain.OperationFailed("add notification", err)
	}

	l.logger.WithFields(log.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"type":            n.Type,
	}).Debug("notification added")
	return n, nil
}

// Get возвращает уведомление по идентификатору.
func (l *Ledger) Get(_ context.Context, id string) (domain.Notification, error) {
	n, err := l.repo.Get(id)
	if err != nil {
		return domain.Notification{}, domain.OperationFailed("get notification", err)
	}
	return n, nil
}

// MarkAsRead помечает уведомление прочитанным. Неизвестный id игнорируется.
func (l *Ledger) MarkAsRead(_ context.Context, id string) error {
	err := l.repo.MarkRead(id)
	if errors.Is(err, domain.ErrNotificationNotFound) {
		l.logger.WithField("notification_id", id).Debug("mark as read skipped: notification not found")
		return nil
	}
	return domain.OperationFailed("mark notification read", err)
}

// MarkAllAsRead помечает прочитанными уведомления одного пользователя и возвращает их число.
func (l *Ledger) MarkAllAsRead(_ context.Context, userID string) (int, error) {
	flipped, err := l.repo.MarkAllRead(userID)
	if err != nil {
		return 0, domain.OperationFailed("mark all notifications read", err)
	}
	return flipped, nil
}

// Remove удаляет уведомление. Неизвестный id игнорируется.
func (l *Ledger) Remove(_ context.Context, id string) error {
	err := l.repo.Delete(id)
	if errors.Is(err, domain.ErrNotificationNotFound) {
		return nil
	}
	return domain.OperationFailed("remove notification", err)
}

// List возвращает уведомления пользователя, новые первыми.
func (l *Ledger) List(_ context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	items, err := l.repo.List(userID, unreadOnly)
	if err != nil {
		return nil, domain.OperationFailed("list notifications", err)
	}
	return items, nil
}

// UnreadCount считает непрочитанные уведомления пользователя.
func (l *Ledger) UnreadCount(ctx context.Context, userID string) (int, error) {
	unread, err := l.List(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}
