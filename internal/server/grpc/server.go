// Package grpc exposes the session lifecycle over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"google.golang.org/grpc"
)

// SessionManager is the part of services.SessionService the transport uses.
type SessionManager interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*models.UserSummary, error)
}

type Authenticator interface {
	Authenticate(rawHeader string) (*auth.Claims, error)
}

type GRPCServer struct {
	address  string
	sessions SessionManager
	gate     Authenticator
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, sessions SessionManager, gate Authenticator) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: sessions,
		gate:     gate,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) newServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterAuthServiceServer(srv, s)
	return srv
}
