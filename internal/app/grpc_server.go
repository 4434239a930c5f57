package app

import (
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcsvc "github.com/vladislavdragonenkov/watermate/internal/service/grpc"
)

// newGRPCServer регистрирует сервис Marketplace, grpc health и reflection.
// Метрики сервера регистрируются в registerer; повторная регистрация переиспользует коллектор.
func newGRPCServer(deps *Dependencies, registerer prometheus.Registerer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			grpcsvc.AuthInterceptor(deps.Gate),
		),
	)

	marketplace := grpcsvc.NewMarketplaceService(deps.Orders, deps.Inbox, deps.Gate, deps.Guard, logger.WithField("layer", "grpc"))
	grpcsvc.RegisterMarketplaceServer(grpcServer, marketplace)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	grpcMetrics.InitializeMetrics(grpcServer)

	// reflection нужен grpcurl
	reflection.Register(grpcServer)

	return grpcServer, healthServer
}
