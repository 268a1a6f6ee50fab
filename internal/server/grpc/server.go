// Package grpc exposes the identity service to the internal CRUD layer:
// callers forward the user's session token and get back who it belongs to.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TokenVerifier resolves a session token to a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// UserLookup loads a user by id; a missing user is common.ErrorUnauthorized.
type UserLookup interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

type GRPCServer struct {
	address  string
	sessions TokenVerifier
	users    UserLookup
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, sessions TokenVerifier, users UserLookup) *GRPCServer {
	return &GRPCServer{
		address:  a,
		sessions: sessions,
		users:    users,
		logger:   l.With("module", "grpc_server"),
	}
}

// newServer builds the grpc.Server with interceptors and services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.sessionTokenInterceptor))

	RegisterIdentityServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(IdentityServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
