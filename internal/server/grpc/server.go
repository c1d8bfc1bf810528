// Package grpc runs the internal gRPC listener. It serves the standard health
// service and guards every other method with the access token gate, so
// internal business services can be registered on the same server.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address  string
	auth     Authenticator
	logger   logging.Logger
	health   *health.Server
	services []func(grpc.ServiceRegistrar)
}

func NewGRPCServer(a string, l logging.Logger, authenticator Authenticator) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    authenticator,
		health:  health.NewServer(),
	}
}

// Register adds a service to be registered when the server starts.
func (s *GRPCServer) Register(fn func(grpc.ServiceRegistrar)) {
	s.services = append(s.services, fn)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	for _, fn := range s.services {
		fn(srv)
	}
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
