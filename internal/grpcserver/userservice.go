package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service is described in api/proto/journal/user_service.proto. It only
// uses well-known protobuf types, so no generated code is needed.
const (
	ServiceName = "journal.UserService"

	ListUsersMethod  = "/" + ServiceName + "/ListUsers"
	CreateUserMethod = "/" + ServiceName + "/CreateUser"
	UpdateUserMethod = "/" + ServiceName + "/UpdateUser"
	DeleteUserMethod = "/" + ServiceName + "/DeleteUser"
	PingMethod       = "/" + ServiceName + "/Ping"
)

// UserServiceServer is the server API for journal.UserService.
type UserServiceServer interface {
	ListUsers(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
	CreateUser(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
	UpdateUser(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
	DeleteUser(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
	Ping(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&userServiceDesc, srv)
}

var userServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListUsers",
			Handler: unaryHandler(ListUsersMethod, func(srv UserServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return srv.ListUsers(ctx, in)
			}),
		},
		{
			MethodName: "CreateUser",
			Handler: unaryHandler(CreateUserMethod, func(srv UserServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return srv.CreateUser(ctx, in)
			}),
		},
		{
			MethodName: "UpdateUser",
			Handler: unaryHandler(UpdateUserMethod, func(srv UserServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return srv.UpdateUser(ctx, in)
			}),
		},
		{
			MethodName: "DeleteUser",
			Handler: unaryHandler(DeleteUserMethod, func(srv UserServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return srv.DeleteUser(ctx, in)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(PingMethod, func(srv UserServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return srv.Ping(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "journal/user_service.proto",
}

// unaryHandler adapts a typed method call to grpc.MethodDesc's handler signature.
func unaryHandler[Req any](
	fullMethod string,
	call func(srv UserServiceServer, ctx context.Context, in *Req) (interface{}, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(
		srv interface{},
		ctx context.Context,
		dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(UserServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(UserServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// UserServiceClient calls journal.UserService over a client connection.
type UserServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewUserServiceClient(cc grpc.ClientConnInterface) *UserServiceClient {
	return &UserServiceClient{cc: cc}
}

func (c *UserServiceClient) ListUsers(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListUsersMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) CreateUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, CreateUserMethod, in, new(emptypb.Empty), opts...)
}

func (c *UserServiceClient) UpdateUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, UpdateUserMethod, in, new(emptypb.Empty), opts...)
}

func (c *UserServiceClient) DeleteUser(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, DeleteUserMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *UserServiceClient) Ping(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PingMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
