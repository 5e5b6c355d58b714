package server

import (
	"net"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the health server, alongside the overall "" status.
const HealthService = "seqstream.Server"

// HealthServer exposes the accept loop state through the standard gRPC health service.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewHealthServer creates a HealthServer that reports NOT_SERVING until the accept loop starts.
func NewHealthServer() *HealthServer {
	h := &HealthServer{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.SetServing(false)
	return h
}

// SetServing updates the reported status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthService, status)
}

// Serve answers health checks on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	if err := h.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "serve health failed")
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.Stop()
}
