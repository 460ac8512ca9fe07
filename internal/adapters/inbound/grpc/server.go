package grpc

import (
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer builds the gRPC server carrying the health service and
// reflection. The returned health server is driven by a HealthProber.
func NewServer(
	accessLog config.AccessLog,
	log logger.Logger,
	tracerProvider otelTrace.TracerProvider,
) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tracerProvider))),
		grpc.ChainUnaryInterceptor(
			ContextExtractorInterceptor(),
			AccessLogInterceptor(log, accessLog),
			RecoveryInterceptor(log),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	reflection.Register(server)

	return server, healthServer
}
