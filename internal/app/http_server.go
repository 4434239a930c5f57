package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/watermate/internal/health"
	"github.com/vladislavdragonenkov/watermate/internal/httpapi"
	"github.com/vladislavdragonenkov/watermate/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// newHealthHandler проверяет соединения хранилища и backlog outbox.
func newHealthHandler(cfg Config, runtime *runtimeDependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	for name, ping := range runtime.pingers {
		handler.RegisterChecker(name, healthcheck.NewSimpleChecker(name, ping))
	}
	handler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(runtime.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge))
	return handler
}

// newGatewayServer собирает HTTP API на gin.
func newGatewayServer(cfg Config, deps *Dependencies, logger *log.Entry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewHandler(deps.Orders, deps.Inbox, deps.Gate, deps.Directory,
		httpapi.WithGuard(deps.Guard),
		httpapi.WithMetrics(deps.HTTPMetrics),
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithServiceName(cfg.ServiceName),
	)
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startMetricsServer запускает служебный HTTP: /metrics для Prometheus и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
