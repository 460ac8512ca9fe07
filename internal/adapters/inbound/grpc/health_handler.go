package grpc

import (
	"context"
	"time"

	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProber keeps the standard gRPC health service in sync with the
// reachability of the device store. The empty service name reports the
// server as a whole.
type HealthProber struct {
	server          *health.Server
	dbHealthChecker ports.DatabaseHealthChecker
	services        []string
	interval        time.Duration
	logger          logger.Logger
}

func NewHealthProber(
	server *health.Server,
	dbHealthChecker ports.DatabaseHealthChecker,
	serviceName string,
	interval time.Duration,
	log logger.Logger,
) *HealthProber {
	return &HealthProber{
		server:          server,
		dbHealthChecker: dbHealthChecker,
		services:        []string{"", serviceName},
		interval:        interval,
		logger:          log,
	}
}

// Probe pings the store once and publishes the outcome.
func (p *HealthProber) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	if err := p.dbHealthChecker.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING

		p.logger.Warn().Err(err).Msg("device store unreachable, gRPC health set to NOT_SERVING")
	}

	for _, service := range p.services {
		p.server.SetServingStatus(service, status)
	}

	return status
}

// Run probes immediately and then on every tick until ctx is done, at which
// point every service is marked NOT_SERVING.
func (p *HealthProber) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)

	for {
		select {
		case <-ctx.Done():
			p.server.Shutdown()

			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
