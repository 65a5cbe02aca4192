// Package grpc provides the shared gRPC server wiring for service
// daemons: otel instrumentation and the standard health service.
package grpc

import (
	"context"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer creates a gRPC server with the otel stats handler and the
// health service registered. The returned health server starts in
// NOT_SERVING; flip it once the daemon finishes startup.
func NewServer(opts ...gogrpc.ServerOption) (*gogrpc.Server, *health.Server) {
	opts = append(opts, gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	srv := gogrpc.NewServer(opts...)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, healthSrv)
	return srv, healthSrv
}

// Serve runs the server on lis until ctx is canceled, then stops it
// gracefully.
func Serve(ctx context.Context, srv *gogrpc.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
