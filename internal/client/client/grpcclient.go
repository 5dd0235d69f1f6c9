package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/storefront/internal/authrpc"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu     sync.Mutex
	tokens models.TokenPair
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AuthorizationHeaderName)
	md.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// accessTokenInterceptor attaches the current access token and, when the
// server reports it expired, refreshes the pair once and retries the call.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if method == authrpc.FullMethod(authrpc.MethodRefresh) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	tokens := s.Tokens()
	if tokens.AccessToken != "" {
		ctx = withAccessToken(ctx, tokens.AccessToken)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) || tokens.RefreshToken == "" {
		return err
	}

	pair, rerr := s.Refresh(ctx, tokens.RefreshToken)
	if rerr != nil {
		return err
	}

	return invoker(withAccessToken(ctx, pair.AccessToken), method, req, reply, cc, opts...)
}

// NewAuthClient dials endpointURL without TLS. Extra dial options are
// appended, which lets tests swap in an in-memory listener.
func NewAuthClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Tokens returns a copy of the current pair.
func (s *GRPCClient) Tokens() models.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) setTokens(p models.TokenPair) {
	s.mu.Lock()
	s.tokens = p
	s.mu.Unlock()
}

func (s *GRPCClient) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, authrpc.FullMethod(method), in, out); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) Signup(ctx context.Context, email, password, name string) (*models.Session, error) {
	out, err := s.call(ctx, authrpc.MethodSignup, map[string]any{
		authrpc.FieldEmail:    email,
		authrpc.FieldPassword: password,
		authrpc.FieldName:     name,
	})
	if err != nil {
		return nil, err
	}
	return s.acceptSession(out), nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	out, err := s.call(ctx, authrpc.MethodLogin, map[string]any{
		authrpc.FieldEmail:    email,
		authrpc.FieldPassword: password,
	})
	if err != nil {
		return nil, err
	}
	return s.acceptSession(out), nil
}

// Refresh exchanges refreshToken for a new pair and makes it current.
func (s *GRPCClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	out, err := s.call(ctx, authrpc.MethodRefresh, map[string]any{
		authrpc.FieldRefreshToken: refreshToken,
	})
	if err != nil {
		return nil, err
	}
	pair := tokenPair(out)
	s.setTokens(pair)
	return &pair, nil
}

// Logout ends the session on the server and forgets the local pair.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if s.Tokens().AccessToken == "" {
		return ErrNotLoggedIn
	}
	if _, err := s.call(ctx, authrpc.MethodLogout, nil); err != nil {
		return err
	}
	s.setTokens(models.TokenPair{})
	return nil
}

func (s *GRPCClient) Me(ctx context.Context) (*models.User, error) {
	if s.Tokens().AccessToken == "" {
		return nil, ErrNotLoggedIn
	}
	out, err := s.call(ctx, authrpc.MethodMe, nil)
	if err != nil {
		return nil, err
	}
	u := userFrom(out)
	return &u, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	out, err := s.call(ctx, authrpc.MethodPing, nil)
	if err != nil {
		return err
	}
	if !strings.EqualFold(stringField(out, authrpc.FieldStatus), authrpc.StatusOK) {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) acceptSession(out *structpb.Struct) *models.Session {
	session := &models.Session{
		TokenPair: tokenPair(out),
		User:      userFrom(out.GetFields()[authrpc.FieldUser].GetStructValue()),
	}
	s.setTokens(session.TokenPair)
	return session
}

func tokenPair(out *structpb.Struct) models.TokenPair {
	return models.TokenPair{
		AccessToken:  stringField(out, authrpc.FieldAccessToken),
		RefreshToken: stringField(out, authrpc.FieldRefreshToken),
	}
}

func userFrom(out *structpb.Struct) models.User {
	return models.User{
		ID:    stringField(out, authrpc.FieldID),
		Email: stringField(out, authrpc.FieldEmail),
		Name:  stringField(out, authrpc.FieldName),
		Role:  stringField(out, authrpc.FieldRole),
	}
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}
