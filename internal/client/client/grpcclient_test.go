package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dmitrijs2005/storefront/internal/authrpc"
	"github.com/dmitrijs2005/storefront/internal/common"
	servergrpc "github.com/dmitrijs2005/storefront/internal/server/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeServer is a structpb-level AuthServiceServer. Access tokens listed in
// expired are answered with "token expired".
type fakeServer struct {
	mu          sync.Mutex
	lastAuth    []string
	expired     map[string]bool
	refreshErr  error
	refreshes   int
	signupErr   error
	loginErr    error
	pingStatus  string
	nextAccess  string
	nextRefresh string
}

func newFakeServer() *fakeServer {
	return &fakeServer{expired: map[string]bool{}, pingStatus: authrpc.StatusOK, nextAccess: "at2", nextRefresh: "rt2"}
}

func sessionReply() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		authrpc.FieldAccessToken:  "at1",
		authrpc.FieldRefreshToken: "rt1",
		authrpc.FieldUser: map[string]any{
			authrpc.FieldID:    "u1",
			authrpc.FieldEmail: "a@x.com",
			authrpc.FieldName:  "Ann",
			authrpc.FieldRole:  common.RoleCustomer,
		},
	})
}

func (f *fakeServer) Signup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return sessionReply()
}

func (f *fakeServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if in.GetFields()[authrpc.FieldPassword].GetStringValue() != "pw123456" {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return sessionReply()
}

func (f *fakeServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return structpb.NewStruct(map[string]any{
		authrpc.FieldAccessToken:  f.nextAccess,
		authrpc.FieldRefreshToken: f.nextRefresh,
	})
}

func (f *fakeServer) authorize(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(common.AuthorizationHeaderName)

	f.mu.Lock()
	f.lastAuth = values
	f.mu.Unlock()

	if len(values) == 0 {
		return status.Error(codes.Unauthenticated, "missing token")
	}
	if f.expired[values[0]] {
		return status.Error(codes.Unauthenticated, "token expired")
	}
	return nil
}

func (f *fakeServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{authrpc.FieldMessage: "logged out"})
}

func (f *fakeServer) Me(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	reply, _ := sessionReply()
	return reply.GetFields()[authrpc.FieldUser].GetStructValue(), nil
}

func (f *fakeServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{authrpc.FieldStatus: f.pingStatus})
}

func newTestClient(t *testing.T, srv *fakeServer) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	servergrpc.RegisterAuthServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewAuthClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_SignupLoginStoresTokens(t *testing.T) {
	c := newTestClient(t, newFakeServer())
	ctx := context.Background()

	s, err := c.Signup(ctx, "a@x.com", "pw123456", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "at1", s.AccessToken)
	assert.Equal(t, "rt1", s.RefreshToken)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "Ann", s.User.Name)
	assert.Equal(t, common.RoleCustomer, s.User.Role)

	s, err = c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", s.User.Email)
	assert.Equal(t, "at1", c.Tokens().AccessToken)
}

func TestGRPCClient_LoginFailureMapsToUnauthorized(t *testing.T) {
	c := newTestClient(t, newFakeServer())

	_, err := c.Login(context.Background(), "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.Empty(t, c.Tokens().AccessToken)
}

func TestGRPCClient_MeSendsBearerToken(t *testing.T) {
	srv := newFakeServer()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{"Bearer at1"}, srv.lastAuth)
}

func TestGRPCClient_RequiresLogin(t *testing.T) {
	c := newTestClient(t, newFakeServer())

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, c.Logout(context.Background()), ErrNotLoggedIn)
}

func TestGRPCClient_ExpiredAccessTokenIsRefreshedOnce(t *testing.T) {
	srv := newFakeServer()
	srv.expired["Bearer at1"] = true
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, 1, srv.refreshes)
	assert.Equal(t, []string{"Bearer at2"}, srv.lastAuth)
	assert.Equal(t, "rt2", c.Tokens().RefreshToken)
}

func TestGRPCClient_RetryFailureKeepsRotatedPair(t *testing.T) {
	srv := newFakeServer()
	srv.expired["Bearer at1"] = true
	srv.expired["Bearer at2"] = true
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = c.Me(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, srv.refreshes)
	assert.Equal(t, "rt2", c.Tokens().RefreshToken)
}

func TestGRPCClient_RefreshFailureKeepsOriginalError(t *testing.T) {
	srv := newFakeServer()
	srv.expired["Bearer at1"] = true
	srv.refreshErr = status.Error(codes.Unauthenticated, "token revoked")
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = c.Me(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "token expired")
	assert.Equal(t, 1, srv.refreshes)
}

func TestGRPCClient_ExplicitRefreshReplacesPair(t *testing.T) {
	c := newTestClient(t, newFakeServer())

	pair, err := c.Refresh(context.Background(), "rt1")
	require.NoError(t, err)
	assert.Equal(t, "at2", pair.AccessToken)
	assert.Equal(t, "rt2", c.Tokens().RefreshToken)
}

func TestGRPCClient_LogoutClearsTokens(t *testing.T) {
	c := newTestClient(t, newFakeServer())
	ctx := context.Background()

	_, err := c.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Tokens().AccessToken)
	assert.Empty(t, c.Tokens().RefreshToken)
}

func TestGRPCClient_Ping(t *testing.T) {
	srv := newFakeServer()
	c := newTestClient(t, srv)

	require.NoError(t, c.Ping(context.Background()))

	srv.pingStatus = "DOWN"
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unauthenticated", status.Error(codes.Unauthenticated, "x"), ErrUnauthorized},
		{"permission", status.Error(codes.PermissionDenied, "x"), ErrForbidden},
		{"exists", status.Error(codes.AlreadyExists, "x"), ErrAlreadyExists},
		{"invalid", status.Error(codes.InvalidArgument, "x"), ErrInvalidArgument},
		{"aborted", status.Error(codes.Aborted, "x"), ErrConflict},
		{"unavailable", status.Error(codes.Unavailable, "x"), ErrUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "x"), ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))

	internal := mapError(status.Error(codes.Internal, "internal error"))
	assert.ErrorIs(t, internal, common.ErrorInternal)

	unknown := mapError(status.Error(codes.DataLoss, "boom"))
	assert.Contains(t, unknown.Error(), "rpc error")

	plain := errors.New("plain")
	assert.ErrorIs(t, mapError(plain), plain)
}
