package snapshot

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// NotificationCollection — хранилище уведомлений, коллекцию которого можно заменить целиком.
type NotificationCollection interface {
	domain.NotificationRepository
	Replace(items []domain.Notification)
}

// NotificationRepository пишет полный snapshot уведомлений после каждой успешной мутации.
type NotificationRepository struct {
	inner  NotificationCollection
	store  domain.BlobStore
	logger *log.Entry

	persistMu sync.Mutex
}

// NewNotificationRepository оборачивает коллекцию уведомлений.
func NewNotificationRepository(inner NotificationCollection, store domain.BlobStore, logger *log.Entry) *NotificationRepository {
	if logger == nil {
		logger = log.New().WithField("component", "snapshot-notifications")
	}
	return &NotificationRepository{inner: inner, store: store, logger: logger}
}

// Load восстанавливает коллекцию из blob и возвращает число уведомлений.
func (r *NotificationRepository) Load(ctx context.Context) (int, error) {
	state, found, err := Load[NotificationsState](ctx, r.store, KeyNotifications)
	if err != nil || !found {
		return 0, err
	}
	r.inner.Replace(state.Notifications)
	return len(state.Notifications), nil
}

// Persist записывает текущую коллекцию под ключом уведомлений.
func (r *NotificationRepository) Persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	items, err := r.inner.List("", false)
	if err != nil {
		return err
	}
	return Save(ctx, r.store, KeyNotifications, NotificationsState{Notifications: items})
}

func (r *NotificationRepository) Add(n domain.Notification) error {
	if err := r.inner.Add(n); err != nil {
		return err
	}
	r.persistAfterMutation()
	return nil
}

func (r *NotificationRepository) Get(id string) (domain.Notification, error) {
	return r.inner.Get(id)
}

func (r *NotificationRepository) List(userID string, unreadOnly bool) ([]domain.Notification, error) {
	return r.inner.List(userID, unreadOnly)
}

func (r *NotificationRepository) MarkRead(id string) error {
	if err := r.inner.MarkRead(id); err != nil {
		return err
	}
	r.persistAfterMutation()
	return nil
}

func (r *NotificationRepository) MarkAllRead(userID string) (int, error) {
	flipped, err := r.inner.MarkAllRead(userID)
	if err != nil {
		return flipped, err
	}
	if flipped > 0 {
		r.persistAfterMutation()
	}
	return flipped, nil
}

func (r *NotificationRepository) Delete(id string) error {
	if err := r.inner.Delete(id); err != nil {
		return err
	}
	r.persistAfterMutation()
	return nil
}

func (r *NotificationRepository) persistAfterMutation() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.Persist(ctx); err != nil {
		r.logger.WithError(err).Warn("failed to persist notifications snapshot")
	}
}

var _ domain.NotificationRepository = (*NotificationRepository)(nil)
