package health

import (
	"context"

	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Mirror runs every check and publishes the outcome on a gRPC health server: one status per
// dependency name and the overall status under the empty service name.
func (h *Handler) Mirror(ctx context.Context, server *grpchealth.Server) bool {
	results, healthy := h.Run(ctx)
	for name, result := range results {
		server.SetServingStatus(name, servingStatus(result == "ok"))
	}
	server.SetServingStatus("", servingStatus(healthy))
	return healthy
}

func servingStatus(up bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if up {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
