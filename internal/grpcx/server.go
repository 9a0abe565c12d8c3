package grpcx

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/pgkit/internal/logging"
)

// Server is a gRPC server exposing the standard health service.
type Server struct {
	address      string
	logger       logging.Logger
	interceptors *Interceptors
	health       *health.Server
}

func NewServer(address string, l logging.Logger, i *Interceptors) *Server {
	return &Server{
		address:      address,
		logger:       logging.OrNop(l).With("module", "grpc_server"),
		interceptors: i,
		health:       health.NewServer(),
	}
}

// Health lets the owner flip serving status, e.g. while the database is down.
func (s *Server) Health() *health.Server { return s.health }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	var opts []grpc.ServerOption
	if s.interceptors != nil {
		opts = append(opts, s.interceptors.Chain())
	}
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
