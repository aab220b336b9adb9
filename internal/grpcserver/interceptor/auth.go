package interceptor

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
)

// Authenticator turns the value of an authorization header into a caller.
// A non-empty token is returned when a new JWT was issued.
type Authenticator interface {
	Resolve(ctx context.Context, authorization string) (auth.CallerIdentity, string, error)
}

type AuthInterceptor struct {
	auth Authenticator
}

func NewAuthInterceptor(resolver Authenticator) *AuthInterceptor {
	return &AuthInterceptor{auth: resolver}
}

// UnaryAuthInterceptor resolves the caller from the "authorization" metadata of
// the listed methods and attaches it to the context. Calls without a valid
// identity fail with Unauthenticated. After a Basic login the issued JWT is
// sent back in the "authorization" response header.
func (a *AuthInterceptor) UnaryAuthInterceptor(protectedMethods []string) grpc.UnaryServerInterceptor {
	protected := make(map[string]struct{}, len(protectedMethods))
	for _, m := range protectedMethods {
		protected[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := protected[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		var authorization string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				authorization = values[0]
			}
		}

		caller, token, err := a.auth.Resolve(ctx, authorization)
		if err != nil {
			if auth.IsUnauthenticated(err) {
				logger.Log.Debugln("gRPC call is not authenticated: ", zap.Error(err))
				return nil, status.Error(codes.Unauthenticated, "valid credentials required")
			}
			logger.Log.Debugln("Error calling the `a.auth.Resolve()`: ", zap.Error(err))
			return nil, status.Error(codes.Internal, "could not authenticate")
		}

		if token != "" {
			if sendErr := grpc.SendHeader(ctx, metadata.Pairs("authorization", token)); sendErr != nil {
				logger.Log.Warnln("failed to send authorization header", zap.Error(sendErr))
			}
		}

		return handler(auth.WithCaller(ctx, caller), req)
	}
}
