// Package grpcserver exposes the user operations as the journal.UserService
// gRPC service.
package grpcserver

import (
	"net"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/journalapp/internal/grpcserver/interceptor"
)

// NewGRPCServer listens on addr and registers handler behind the logging and
// authentication interceptors. UpdateUser and DeleteUser require a caller.
func NewGRPCServer(
	addr string,
	handler *UserHandler,
	auth interceptor.Authenticator,
) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	authInterceptor := interceptor.NewAuthInterceptor(auth)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor(),
			authInterceptor.UnaryAuthInterceptor([]string{
				UpdateUserMethod,
				DeleteUserMethod,
			}),
		),
	)
	RegisterUserServiceServer(server, handler)

	return server, lis, nil
}
