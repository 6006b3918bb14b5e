package grpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Server bundles a gRPC server with its health service.
type Server struct {
	GRPC     *gogrpc.Server
	Health   *health.Server
	services []string
}

// NewServer builds a traced gRPC server with the health service registered.
// The named services start NOT_SERVING until SetServing is called.
func NewServer(maxMessageBytes int, services ...string) *Server {
	opts := []gogrpc.ServerOption{gogrpc.StatsHandler(otelgrpc.NewServerHandler())}
	if maxMessageBytes > 0 {
		opts = append(opts, gogrpc.MaxRecvMsgSize(maxMessageBytes), gogrpc.MaxSendMsgSize(maxMessageBytes))
	}
	grpcServer := gogrpc.NewServer(opts...)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{GRPC: grpcServer, Health: healthServer, services: append([]string{""}, services...)}
	s.SetServing(false)
	return s
}

// SetServing flips every registered service between SERVING and NOT_SERVING.
func (s *Server) SetServing(serving bool) {
	if s == nil || s.Health == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, service := range s.services {
		s.Health.SetServingStatus(service, status)
	}
}
