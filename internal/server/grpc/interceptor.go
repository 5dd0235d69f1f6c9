package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/storefront/internal/authrpc"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// protectedMethods need a valid access token in the "authorization" metadata.
var protectedMethods = map[string]bool{
	authrpc.FullMethod(authrpc.MethodLogout): true,
	authrpc.FullMethod(authrpc.MethodMe):     true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.gate.Authenticate(header)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(auth.WithClaims(ctx, claims), req)
}
