package grpcserver

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/service"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

type credentials struct {
	Username string `validate:"required,max=255"`
	Password string `validate:"required,max=1024"`
}

type UserHandler struct {
	svc      *service.Service
	validate *validator.Validate
}

func NewUserHandler(svc *service.Service) *UserHandler {
	return &UserHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *UserHandler) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	users, err := h.svc.GetAll(ctx)
	if err != nil {
		logger.Log.Debugln("Error calling the `h.svc.GetAll()`: ", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to list users")
	}

	result := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(users))}
	for _, usr := range models.NewUsersResponse(users) {
		item, err := userToStruct(usr)
		if err != nil {
			logger.Log.Debugln("Error calling the `userToStruct()`: ", zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to encode users")
		}
		result.Values = append(result.Values, structpb.NewStructValue(item))
	}

	return result, nil
}

func (h *UserHandler) CreateUser(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	creds, err := h.credentialsFromStruct(req)
	if err != nil {
		return nil, err
	}

	err = h.svc.SaveNewUser(ctx, &user.User{
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		return nil, saveError(err)
	}

	return &emptypb.Empty{}, nil
}

func (h *UserHandler) UpdateUser(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing caller identity")
	}

	creds, err := h.credentialsFromStruct(req)
	if err != nil {
		return nil, err
	}

	updated, err := h.svc.UpdateCallerCredentials(ctx, caller, creds.Username, creds.Password)
	if err != nil {
		return nil, saveError(err)
	}
	if !updated {
		logger.Log.Debugln("No stored user for caller, nothing updated", "caller", caller.Username)
	}

	return &emptypb.Empty{}, nil
}

func (h *UserHandler) DeleteUser(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing caller identity")
	}

	if err := h.svc.DeleteCaller(ctx, caller); err != nil {
		logger.Log.Debugln("Error calling the `h.svc.DeleteCaller()`: ", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to delete user")
	}

	return &emptypb.Empty{}, nil
}

func (h *UserHandler) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.svc.Ping(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, "storage is unavailable")
	}
	return &emptypb.Empty{}, nil
}

func (h *UserHandler) credentialsFromStruct(req *structpb.Struct) (*credentials, error) {
	fields := req.GetFields()

	creds := &credentials{
		Username: fields["userName"].GetStringValue(),
		Password: fields["password"].GetStringValue(),
	}
	if creds.Username == "" {
		creds.Username = fields["username"].GetStringValue()
	}

	if err := h.validate.Struct(creds); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return creds, nil
}

func saveError(err error) error {
	if errors.Is(err, models.ErrUsernameTaken) {
		return status.Error(codes.AlreadyExists, "username already taken")
	}
	logger.Log.Debugln("Error saving user: ", zap.Error(err))
	return status.Error(codes.Internal, "failed to save user")
}

func userToStruct(usr models.UserResponse) (*structpb.Struct, error) {
	roles := make([]interface{}, 0, len(usr.Roles))
	for _, role := range usr.Roles {
		roles = append(roles, role)
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":        usr.ID,
		"userName":  usr.Username,
		"roles":     roles,
		"createdAt": usr.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": usr.UpdatedAt.Format(time.RFC3339Nano),
	})
}

var _ UserServiceServer = (*UserHandler)(nil)
