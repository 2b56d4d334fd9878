package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/policy-extractor/internal/documents"
)

// ExtractorService is the service name reported alongside the overall ("") status.
const ExtractorService = "policy.Extractor"

// HealthReporter keeps the gRPC health status in step with the document root.
type HealthReporter struct {
	hs       *health.Server
	resolver *documents.Resolver
	logger   *slog.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(hs *health.Server, resolver *documents.Resolver, logger *slog.Logger) *HealthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthReporter{hs: hs, resolver: resolver, logger: logger}
}

// Update checks the document root once and publishes the result.
func (h *HealthReporter) Update() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.resolver.CheckRoot(); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if h.last != status {
			h.logger.Warn("health.not_serving", "err", err)
		}
	} else if h.last != status {
		h.logger.Info("health.serving", "root", h.resolver.Root())
	}
	h.last = status
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(ExtractorService, status)
	return status
}

// Run updates on every tick until ctx is done, then marks the server as shutting down.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	h.Update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.Update()
		}
	}
}

// NewGRPCServer registers the health service and reflection.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s
}
