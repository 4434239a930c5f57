package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// NotificationRepository — in-memory хранилище уведомлений, новые первыми.
type NotificationRepository struct {
	mu    sync.RWMutex
	items []domain.Notification
}

// NewNotificationRepository создаёт in-memory реализацию NotificationRepository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Add(n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append([]domain.Notification{n}, r.items...)
	return nil
}

func (r *NotificationRepository) Get(id string) (domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos := r.find(id)
	if pos < 0 {
		return domain.Notification{}, domain.ErrNotificationNotFound
	}
	return r.items[pos], nil
}

// List возвращает уведомления пользователя; пустой userID означает всех пользователей.
func (r *NotificationRepository) List(userID string, unreadOnly bool) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.items {
		if userID != "" && n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (r *NotificationRepository) MarkRead(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.find(id)
	if pos < 0 {
		return domain.ErrNotificationNotFound
	}
	r.items[pos].IsRead = true
	return nil
}

func (r *NotificationRepository) MarkAllRead(userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flipped := 0
	for i := range r.items {
		if r.items[i].UserID != userID || r.items[i].IsRead {
			continue
		}
		r.items[i].IsRead = true
		flipped++
	}
	return flipped, nil
}

func (r *NotificationRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.find(id)
	if pos < 0 {
		return domain.ErrNotificationNotFound
	}
	r.items = append(r.items[:pos], r.items[pos+1:]...)
	return nil
}

// Replace заменяет всю коллекцию (восстановление из snapshot).
func (r *NotificationRepository) Replace(items []domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append([]domain.Notification(nil), items...)
}

func (r *NotificationRepository) find(id string) int {
	for i, n := range r.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

var _ domain.NotificationRepository = (*NotificationRepository)(nil)
