package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/storage/memory"
	"github.com/vladislavdragonenkov/watermate/internal/storage/postgres"
	"github.com/vladislavdragonenkov/watermate/internal/storage/snapshot"
)

// runtimeDependencies — репозитории выбранного драйвера хранения.
type runtimeDependencies struct {
	orderRepo        domain.OrderRepository
	notificationRepo domain.NotificationRepository
	timelineRepo     domain.TimelineRepository
	outboxRepo       domain.OutboxRepository
	idempotencyRepo  domain.IdempotencyRepository
	// blobs хранит сессию; nil для драйвера memory.
	blobs domain.BlobStore

	pingers map[string]func(ctx context.Context) error
	closers []func() error
}

// Close освобождает соединения драйвера в обратном порядке открытия.
func (d *runtimeDependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := cfg.StorageDriver
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		return newMemoryDependencies(), nil
	case StorageDriverFile:
		store, err := snapshot.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot dir: %w", err)
		}
		return newSnapshotDependencies(ctx, store, logger)
	case StorageDriverRedis:
		return initRedisDependencies(ctx, cfg, logger)
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func newMemoryDependencies() *runtimeDependencies {
	return &runtimeDependencies{
		orderRepo:        memory.NewOrderRepository(),
		notificationRepo: memory.NewNotificationRepository(),
		timelineRepo:     memory.NewTimelineRepository(),
		outboxRepo:       memory.NewOutboxRepository(),
		idempotencyRepo:  memory.NewIdempotencyRepository(),
		pingers:          map[string]func(ctx context.Context) error{},
	}
}

// newSnapshotDependencies держит коллекции в памяти и сохраняет заказы и уведомления
// в store после каждой мутации. Сохранённое состояние загружается сразу.
func newSnapshotDependencies(ctx context.Context, store domain.BlobStore, logger *log.Entry) (*runtimeDependencies, error) {
	deps := newMemoryDependencies()

	orders := snapshot.NewOrderRepository(memory.NewOrderRepository(), store, logger.WithField("layer", "snapshot-orders"))
	loadedOrders, err := orders.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders snapshot: %w", err)
	}
	notifications := snapshot.NewNotificationRepository(memory.NewNotificationRepository(), store, logger.WithField("layer", "snapshot-notifications"))
	loadedNotifications, err := notifications.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notifications snapshot: %w", err)
	}

	logger.WithFields(log.Fields{
		"orders":        loadedOrders,
		"notifications": loadedNotifications,
	}).Info("snapshot restored")

	deps.orderRepo = orders
	deps.notificationRepo = notifications
	deps.blobs = store
	return deps, nil
}

func initRedisDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	deps, err := newSnapshotDependencies(ctx, snapshot.NewRedisStore(client, cfg.RedisKeyPrefix), logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	deps.pingers["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	deps.closers = append(deps.closers, client.Close)

	logger.WithField("addr", opts.Addr).Info("redis snapshot storage initialized")
	return deps, nil
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage requires WATERMATE_POSTGRES_DSN")
	}

	var opts []postgres.Option
	if cfg.PostgresMaxConns > 0 {
		opts = append(opts, postgres.WithMaxOpenConns(cfg.PostgresMaxConns))
	}
	store, err := postgres.Open(ctx, cfg.PostgresDSN, opts...)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	logger.Info("postgres storage initialized")
	return &runtimeDependencies{
		orderRepo:        postgres.NewOrderRepository(store),
		notificationRepo: postgres.NewNotificationRepository(store),
		timelineRepo:     postgres.NewTimelineRepository(store),
		outboxRepo:       postgres.NewOutboxRepository(store),
		idempotencyRepo:  postgres.NewIdempotencyRepository(store),
		blobs:            postgres.NewBlobStore(store),
		pingers:          map[string]func(ctx context.Context) error{"postgres": store.Ping},
		closers:          []func() error{store.Close},
	}, nil
}
