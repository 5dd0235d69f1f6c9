package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/storefront/internal/authrpc"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	session, err := s.sessions.Signup(ctx, services.SignupInput{
		Email:    stringField(req, authrpc.FieldEmail),
		Password: stringField(req, authrpc.FieldPassword),
		Name:     stringField(req, authrpc.FieldName),
		Role:     stringField(req, authrpc.FieldRole),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", session.User.ID)
	return sessionStruct(session)
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	session, err := s.sessions.Login(ctx, stringField(req, authrpc.FieldEmail), stringField(req, authrpc.FieldPassword))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return sessionStruct(session)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	token := stringField(req, authrpc.FieldRefreshToken)
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refreshToken is required")
	}

	pair, err := s.sessions.Refresh(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{
		authrpc.FieldAccessToken:  pair.AccessToken,
		authrpc.FieldRefreshToken: pair.RefreshToken,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	if err := s.sessions.Logout(ctx, claims.UserID()); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{authrpc.FieldMessage: "logged out"})
}

func (s *GRPCServer) Me(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	me, err := s.sessions.Me(ctx, claims.UserID())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(userMap(*me))
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{authrpc.FieldStatus: authrpc.StatusOK})
}

// toStatus maps service errors onto gRPC codes. Internal details are logged,
// never returned.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "email is already registered")
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrTokenRevoked):
		return status.Error(codes.Unauthenticated, "token revoked")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, "refresh token was rotated concurrently")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	}

	s.logger.Error(ctx, err.Error())
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	if v, ok := req.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func userMap(u models.UserSummary) map[string]any {
	return map[string]any{
		authrpc.FieldID:    u.ID,
		authrpc.FieldEmail: u.Email,
		authrpc.FieldName:  u.Name,
		authrpc.FieldRole:  u.Role,
	}
}

func sessionStruct(session *services.Session) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		authrpc.FieldAccessToken:  session.AccessToken,
		authrpc.FieldRefreshToken: session.RefreshToken,
		authrpc.FieldUser:         userMap(session.User),
	})
}
