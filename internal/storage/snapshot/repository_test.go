package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/storage/memory"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("component", "test")
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, error) { return nil, domain.ErrBlobNotFound }
func (failingStore) Save(context.Context, string, []byte) error   { return errors.New("disk full") }

func TestOrderRepository_PersistsAndRestores(t *testing.T) {
	store := NewMemoryStore()
	repo := NewOrderRepository(memory.NewOrderRepository(), store, quietLogger())

	orders := sampleOrders()
	for i := len(orders) - 1; i >= 0; i-- {
		require.NoError(t, repo.Create(orders[i]))
	}

	stored, err := repo.Get("order-1")
	require.NoError(t, err)
	stored.Status = domain.OrderStatusPending
	require.NoError(t, repo.Save(stored))

	written, err := store.Load(context.Background(), KeyOrders)
	require.NoError(t, err)

	restored := NewOrderRepository(memory.NewOrderRepository(), store, quietLogger())
	n, err := restored.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := restored.List(domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "order-2", got[0].ID)
	assert.Equal(t, domain.OrderStatusPending, got[1].Status)

	require.NoError(t, restored.Persist(context.Background()))
	rewritten, err := store.Load(context.Background(), KeyOrders)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(rewritten))
}

func TestOrderRepository_LoadWithoutBlob(t *testing.T) {
	repo := NewOrderRepository(memory.NewOrderRepository(), NewMemoryStore(), quietLogger())
	n, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrderRepository_SnapshotFailureKeepsMutation(t *testing.T) {
	repo := NewOrderRepository(memory.NewOrderRepository(), failingStore{}, quietLogger())

	require.NoError(t, repo.Create(sampleOrders()[0]))
	_, err := repo.Get("order-2")
	require.NoError(t, err)

	require.ErrorIs(t, repo.Persist(context.Background()), domain.ErrOperationFailed)
}

func TestNotificationRepository_PersistsAndRestores(t *testing.T) {
	store := NewMemoryStore()
	repo := NewNotificationRepository(memory.NewNotificationRepository(), store, quietLogger())

	require.NoError(t, repo.Add(domain.Notification{ID: "n-1", UserID: "client-1", Type: domain.NotificationTypeOrder}))
	require.NoError(t, repo.Add(domain.Notification{ID: "n-2", UserID: "client-1", Type: domain.NotificationTypePayment}))
	require.NoError(t, repo.Add(domain.Notification{ID: "n-3", UserID: "shop-1", Type: domain.NotificationTypeOrder}))
	require.NoError(t, repo.MarkRead("n-1"))
	require.NoError(t, repo.Delete("n-3"))
	flipped, err := repo.MarkAllRead("client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	restored := NewNotificationRepository(memory.NewNotificationRepository(), store, quietLogger())
	n, err := restored.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unread, err := restored.List("client-1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
