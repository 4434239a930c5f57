package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "app-test")
}

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, quietLogger())
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.orderRepo == nil || deps.notificationRepo == nil {
		t.Fatal("order and notification repos should not be nil for memory storage")
	}
	if deps.outboxRepo == nil || deps.timelineRepo == nil || deps.idempotencyRepo == nil {
		t.Fatal("outbox, timeline and idempotency repos should not be nil for memory storage")
	}
	if deps.blobs != nil {
		t.Fatal("memory storage does not persist sessions")
	}
	require.NoError(t, deps.Close())
}

func TestInitRuntimeDependencies_EmptyDriverMeansMemory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{}, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, deps.orderRepo)
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, quietLogger())
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, quietLogger())
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestInitRuntimeDependencies_RedisInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverRedis,
		RedisURL:      "not-a-redis-url",
	}, quietLogger())
	require.ErrorContains(t, err, "parse redis url")
}

func TestInitRuntimeDependencies_FileSnapshotSurvivesRestart(t *testing.T) {
	t.Parallel()

	cfg := Config{StorageDriver: StorageDriverFile, SnapshotDir: t.TempDir()}

	first, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, first.blobs)

	order := domain.Order{
		ID:            "order-1",
		ClientID:      "client-1",
		ShopID:        "shop-1",
		Litres:        20,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodMpesa,
		PaymentStatus: domain.PaymentStatusPending,
	}
	require.NoError(t, first.orderRepo.Create(order))
	require.NoError(t, first.notificationRepo.Add(domain.Notification{ID: "n-1", UserID: "shop-1", Title: "New Order Received"}))

	second, err := initRuntimeDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	restored, err := second.orderRepo.Get("order-1")
	require.NoError(t, err)
	require.Equal(t, 20, restored.Litres)

	inbox, err := second.notificationRepo.List("shop-1", false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
}
