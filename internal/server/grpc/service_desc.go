package grpc

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/authrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AuthServiceServer is implemented by GRPCServer. Bodies are
// google.protobuf.Struct, so no generated stubs are needed.
type AuthServiceServer interface {
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: authrpc.FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: authrpc.ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: authrpc.MethodSignup, Handler: unaryHandler(authrpc.MethodSignup, AuthServiceServer.Signup)},
		{MethodName: authrpc.MethodLogin, Handler: unaryHandler(authrpc.MethodLogin, AuthServiceServer.Login)},
		{MethodName: authrpc.MethodRefresh, Handler: unaryHandler(authrpc.MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: authrpc.MethodLogout, Handler: unaryHandler(authrpc.MethodLogout, AuthServiceServer.Logout)},
		{MethodName: authrpc.MethodMe, Handler: unaryHandler(authrpc.MethodMe, AuthServiceServer.Me)},
		{MethodName: authrpc.MethodPing, Handler: unaryHandler(authrpc.MethodPing, AuthServiceServer.Ping)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}
