package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/storage/memory"
)

func newNotification(id, userID string) domain.Notification {
	return domain.Notification{
		ID:        id,
		UserID:    userID,
		Title:     "Order Status Updated",
		Message:   "Your order is now confirmed",
		Type:      domain.NotificationTypeOrder,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNotificationRepository_AddListNewestFirst(t *testing.T) {
	repo := memory.NewNotificationRepository()
	for _, n := range []domain.Notification{
		newNotification("n-1", "client-1"),
		newNotification("n-2", "shop-1"),
		newNotification("n-3", "client-1"),
	} {
		if err := repo.Add(n); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	mine, err := repo.List("client-1", false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "n-3" || mine[1].ID != "n-1" {
		t.Fatalf("unexpected list: %+v", mine)
	}

	all, _ := repo.List("", false)
	if len(all) != 3 {
		t.Fatalf("expected all notifications, got %d", len(all))
	}
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	repo := memory.NewNotificationRepository()
	_ = repo.Add(newNotification("n-1", "client-1"))
	_ = repo.Add(newNotification("n-2", "client-1"))

	if err := repo.MarkRead("n-1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if err := repo.MarkRead("missing"); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	unread, _ := repo.List("client-1", true)
	if len(unread) != 1 || unread[0].ID != "n-2" {
		t.Fatalf("unexpected unread: %+v", unread)
	}
}

func TestNotificationRepository_MarkAllReadScopedToUser(t *testing.T) {
	repo := memory.NewNotificationRepository()
	_ = repo.Add(newNotification("n-1", "client-1"))
	_ = repo.Add(newNotification("n-2", "client-1"))
	_ = repo.Add(newNotification("n-3", "shop-1"))
	_ = repo.MarkRead("n-1")

	flipped, err := repo.MarkAllRead("client-1")
	if err != nil {
		t.Fatalf("mark all read failed: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("expected 1 flipped, got %d", flipped)
	}

	other, _ := repo.List("shop-1", true)
	if len(other) != 1 {
		t.Fatalf("other user must keep unread notifications, got %+v", other)
	}
}

func TestNotificationRepository_Delete(t *testing.T) {
	repo := memory.NewNotificationRepository()
	_ = repo.Add(newNotification("n-1", "client-1"))

	if err := repo.Delete("n-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete("n-1"); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := repo.Get("n-1"); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
