package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/directory"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
	"github.com/vladislavdragonenkov/watermate/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/watermate/internal/service/notifications"
	"github.com/vladislavdragonenkov/watermate/internal/service/orders"
	"github.com/vladislavdragonenkov/watermate/internal/service/session"
)

// Dependencies содержит сервисы маркетплейса, собранные поверх репозиториев.
type Dependencies struct {
	Directory   *directory.Catalog
	Orders      *orders.Ledger
	Inbox       *notifications.Ledger
	Coordinator *lifecycle.Coordinator
	Gate        *session.Gate
	Guard       *idempotency.Guard

	LedgerMetrics      *metrics.LedgerMetrics
	OutboxMetrics      *metrics.OutboxMetrics
	IdempotencyMetrics *metrics.IdempotencyMetrics
	HTTPMetrics        *metrics.HTTPMetrics

	runtime *runtimeDependencies
}

// NewDependencies связывает каталог, ledger'ы, координатор жизненного цикла,
// сессию и idempotency guard. Сохранённая сессия восстанавливается сразу.
func NewDependencies(ctx context.Context, cfg Config, runtime *runtimeDependencies, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	deps := &Dependencies{
		Directory:          directory.NewSeeded(),
		LedgerMetrics:      metrics.NewLedgerMetricsWithRegisterer(registerer),
		OutboxMetrics:      metrics.NewOutboxMetricsWithRegisterer(registerer),
		IdempotencyMetrics: metrics.NewIdempotencyMetricsWithRegisterer(registerer),
		HTTPMetrics:        metrics.NewHTTPMetricsWithRegisterer(registerer),
		runtime:            runtime,
	}

	deps.Inbox = notifications.NewLedger(runtime.notificationRepo, logger.WithField("layer", "notifications"))
	deps.Coordinator = lifecycle.NewCoordinator(deps.Inbox, deps.Directory,
		lifecycle.WithTimeline(runtime.timelineRepo),
		lifecycle.WithOutbox(runtime.outboxRepo),
		lifecycle.WithMetrics(deps.LedgerMetrics),
		lifecycle.WithLogger(logger.WithField("layer", "lifecycle")),
	)
	deps.Orders = orders.NewLedger(runtime.orderRepo, deps.Directory, runtime.timelineRepo,
		orders.WithObserver(deps.Coordinator),
		orders.WithStrictTransitions(cfg.StrictTransitions),
		orders.WithLogger(logger.WithField("layer", "orders")),
	)

	gateOpts := []session.Option{
		session.WithLogger(logger.WithField("layer", "session")),
		session.WithTokenTTL(cfg.TokenTTL),
	}
	if runtime.blobs != nil {
		gateOpts = append(gateOpts, session.WithStore(runtime.blobs))
	}
	gate, err := session.NewGate(deps.Directory, []byte(cfg.JWTSecret), gateOpts...)
	if err != nil {
		return nil, fmt.Errorf("session gate: %w", err)
	}
	if err := gate.Restore(ctx); err != nil {
		logger.WithError(err).Warn("failed to restore session, starting signed out")
	}
	deps.Gate = gate

	deps.Guard = idempotency.NewGuard(runtime.idempotencyRepo,
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithGuardLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithGuardMetrics(deps.IdempotencyMetrics),
	)

	return deps, nil
}
