package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создаёт PostgreSQL-реализацию NotificationRepository.
// Порядок «новые первыми» держится на seq, а не на created_at: время может совпасть.
func NewNotificationRepository(store *Store) domain.NotificationRepository {
	return &notificationRepository{db: store.DB()}
}

func (r *notificationRepository) Add(n domain.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, action_url, is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.ActionURL, n.IsRead, n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(id string) (domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := scanNotification(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, message, type, action_url, is_read, created_at
		FROM notifications
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotificationNotFound
		}
		return domain.Notification{}, fmt.Errorf("select notification: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) List(userID string, unreadOnly bool) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, type, action_url, is_read, created_at
		FROM notifications
		WHERE ($1 = '' OR user_id = $1)
		  AND (NOT $2 OR NOT is_read)
		ORDER BY seq DESC
	`, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

func (r *notificationRepository) MarkRead(id string) error {
	return r.execOne(`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id, "mark notification read")
}

func (r *notificationRepository) MarkAllRead(userID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND NOT is_read
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *notificationRepository) Delete(id string) error {
	return r.execOne(`DELETE FROM notifications WHERE id = $1`, id, "delete notification")
}

func (r *notificationRepository) execOne(query, id, op string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n       domain.Notification
		kindRaw string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &kindRaw, &n.ActionURL, &n.IsRead, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.Type = domain.NotificationType(kindRaw)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

var _ domain.NotificationRepository = (*notificationRepository)(nil)
