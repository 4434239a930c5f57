// Package app собирает процесс watermate: хранилище, ledger'ы, gRPC API, HTTP-шлюз,
// outbox worker и служебный HTTP с метриками и health checks.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
	"github.com/vladislavdragonenkov/watermate/internal/service/outbox"
	"github.com/vladislavdragonenkov/watermate/internal/tracing"
	"github.com/vladislavdragonenkov/watermate/internal/version"
)

const defaultShutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint, version.GetVersion())
	if err != nil {
		logger.WithError(err).Warn("failed to init tracing, continuing without it")
		shutdownTracing = func(context.Context) error { return nil }
	}

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	deps, err := NewDependencies(ctx, cfg, runtime, prometheus.DefaultRegisterer, logger)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}

	// Без Kafka события outbox уходят в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokerList(), cfg.KafkaClientID, logger)
	publisher, dlqPublisher := outboxPublishers(kafkaProducer, logger)
	outboxWorker := newOutboxWorker(cfg, runtime, deps, publisher, dlqPublisher, logger)
	cleanupWorker := idempotency.NewCleanupWorker(runtime.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMetrics(deps.IdempotencyMetrics),
	)

	grpcServer, healthServer := newGRPCServer(deps, prometheus.DefaultRegisterer, logger)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, newHealthHandler(cfg, runtime))
	gatewaySrv := newGatewayServer(cfg, deps, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		_ = shutdownTracing(context.Background())
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		outboxWorker.Run(workersCtx)
	}()
	go func() {
		defer workers.Done()
		cleanupWorker.Run(workersCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		if err := gatewaySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	shutdownHTTP(gatewaySrv, logger)

	stopWorkers()
	workers.Wait()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	outboxWorker.Drain(drainCtx)
	cancelDrain()
	if stats, err := runtime.outboxRepo.Stats(); err == nil && stats.PendingCount > 0 {
		logger.WithField("pending", stats.PendingCount).Warn("outbox not fully drained before shutdown")
	}

	closeKafka(kafkaProducer, logger)
	shutdownHTTP(metricsSrv, logger)

	tracingCtx, cancelTracing := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := shutdownTracing(tracingCtx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
	cancelTracing()

	return runErr
}

func newOutboxWorker(cfg Config, runtime *runtimeDependencies, deps *Dependencies, publisher, dlq domain.OutboxPublisher, logger *log.Entry) *outbox.Worker {
	opts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(deps.OutboxMetrics),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		outbox.WithEventTypes(cfg.OutboxEventTypeList()...),
	}
	if dlq != nil {
		opts = append(opts, outbox.WithDLQPublisher(dlq))
	}
	return outbox.NewWorker(runtime.outboxRepo, publisher, opts...)
}

// stopGRPC ждёт завершения активных вызовов не дольше timeout.
func stopGRPC(srv *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stoppedCh := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}
