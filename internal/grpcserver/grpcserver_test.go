package grpcserver

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/mockstorage"
	"github.com/patric-chuzhbe/journalapp/internal/password"
	"github.com/patric-chuzhbe/journalapp/internal/service"
)

const (
	addr        = "localhost:0"
	dialTimeout = 5 * time.Second
)

var testSigningKey = []byte("grpc-test-signing-key")

type initOptions struct {
	mockStorage storage.Storage
}

type initOption func(*initOptions)

func withMockStorage(db storage.Storage) initOption {
	return func(options *initOptions) {
		options.mockStorage = db
	}
}

type testEnv struct {
	client *UserServiceClient
	db     storage.Storage
	auth   *auth.Auth
}

// startTestGRPCServer boots up a test gRPC server and returns a client bound to it.
func startTestGRPCServer(t *testing.T, optionsProto ...initOption) *testEnv {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	require.NoError(t, logger.Init("debug"))

	var db storage.Storage
	if options.mockStorage != nil {
		db = options.mockStorage
	} else {
		memory, err := memorystorage.New()
		require.NoError(t, err)
		db = memory
	}

	theAuth := auth.New(db, "auth", testSigningKey, time.Hour)
	svc := service.New(db, password.NewBcryptHasher(&password.BcryptConfig{Cost: 4}))

	server, lis, err := NewGRPCServer(addr, NewUserHandler(svc), theAuth)
	require.NoError(t, err)

	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("gRPC server stopped: %v", err)
		}
	}()

	dialContext, cancelDial := context.WithTimeout(context.Background(), dialTimeout)
	defer cancelDial()

	conn, err := grpc.DialContext(
		dialContext,
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		server.Stop()
		conn.Close()
		lis.Close()
	})

	return &testEnv{
		client: NewUserServiceClient(conn),
		db:     db,
		auth:   theAuth,
	}
}

func credentialsStruct(t *testing.T, username, pass string) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]interface{}{
		"userName": username,
		"password": pass,
	})
	require.NoError(t, err)
	return s
}

func basicContext(username, pass string) context.Context {
	return metadata.AppendToOutgoingContext(
		context.Background(),
		"authorization",
		"Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+pass)),
	)
}

func listUsernames(t *testing.T, env *testEnv) []string {
	t.Helper()
	list, err := env.client.ListUsers(context.Background())
	require.NoError(t, err)
	result := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		fields := item.GetStructValue().GetFields()
		_, hasPassword := fields["password"]
		assert.False(t, hasPassword, "password must not be exposed")
		result = append(result, fields["userName"].GetStringValue())
	}
	return result
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, code, st.Code())
}

func TestCreateAndListUsers(t *testing.T) {
	env := startTestGRPCServer(t)

	assert.Empty(t, listUsernames(t, env))

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))
	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "bob", "hunter2")))

	assert.ElementsMatch(t, []string{"alice", "bob"}, listUsernames(t, env))

	list, err := env.client.ListUsers(context.Background())
	require.NoError(t, err)
	for _, item := range list.GetValues() {
		fields := item.GetStructValue().GetFields()
		assert.NotEmpty(t, fields["id"].GetStringValue())
		roles := fields["roles"].GetListValue().GetValues()
		require.Len(t, roles, 1)
		assert.Equal(t, "USER", roles[0].GetStringValue())
	}
}

func TestCreateUser_InvalidArgument(t *testing.T) {
	env := startTestGRPCServer(t)

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{name: "empty", fields: map[string]interface{}{}},
		{name: "no password", fields: map[string]interface{}{"userName": "alice"}},
		{name: "no username", fields: map[string]interface{}{"password": "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)
			requireCode(t, env.client.CreateUser(context.Background(), req), codes.InvalidArgument)
		})
	}

	assert.Empty(t, listUsernames(t, env))
}

func TestCreateUser_AlreadyExists(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))
	err := env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "other"))
	requireCode(t, err, codes.AlreadyExists)
}

func TestUpdateUser_WithBasicCredentials(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))
	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "bob", "hunter2")))

	var header metadata.MD
	err := env.client.UpdateUser(
		basicContext("alice", "secret"),
		credentialsStruct(t, "alicia", "n3w"),
		grpc.Header(&header),
	)
	require.NoError(t, err)

	tokens := header.Get("authorization")
	require.Len(t, tokens, 1)
	caller, err := env.auth.GetCallerFromToken(tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", caller.Username)

	assert.ElementsMatch(t, []string{"alicia", "bob"}, listUsernames(t, env))

	// Old credentials are gone, new ones work.
	requireCode(t, env.client.DeleteUser(basicContext("alice", "secret")), codes.Unauthenticated)
	require.NoError(t, env.client.DeleteUser(basicContext("alicia", "n3w")))
	assert.Equal(t, []string{"bob"}, listUsernames(t, env))
}

func TestUpdateUser_CallerWithoutRecord(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "bob", "hunter2")))

	token, err := env.auth.BuildJWTString(&auth.Claims{Username: "ghost"})
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", token)

	require.NoError(t, env.client.UpdateUser(ctx, credentialsStruct(t, "ghost2", "pw")))
	assert.Equal(t, []string{"bob"}, listUsernames(t, env))
}

func TestDeleteUser_Idempotent(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))

	alice, err := env.db.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	token, err := env.auth.IssueToken(alice)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)

	require.NoError(t, env.client.DeleteUser(ctx))
	require.NoError(t, env.client.DeleteUser(ctx))
	assert.Empty(t, listUsernames(t, env))
}

func TestDeleteUser_TokenOfPreviousOwner(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))

	var header metadata.MD
	require.NoError(t, env.client.UpdateUser(
		basicContext("alice", "secret"),
		credentialsStruct(t, "alicia", "n3w"),
		grpc.Header(&header),
	))
	tokens := header.Get("authorization")
	require.Len(t, tokens, 1)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "other")))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", tokens[0])
	requireCode(t, env.client.DeleteUser(ctx), codes.Unauthenticated)
	assert.ElementsMatch(t, []string{"alice", "alicia"}, listUsernames(t, env))
}

func TestProtectedMethods_Unauthenticated(t *testing.T) {
	env := startTestGRPCServer(t)

	require.NoError(t, env.client.CreateUser(context.Background(), credentialsStruct(t, "alice", "secret")))

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no metadata", ctx: context.Background()},
		{name: "wrong password", ctx: basicContext("alice", "wrong")},
		{name: "garbage token", ctx: metadata.AppendToOutgoingContext(context.Background(), "authorization", "not-a-jwt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, env.client.UpdateUser(tt.ctx, credentialsStruct(t, "x", "y")), codes.Unauthenticated)
			requireCode(t, env.client.DeleteUser(tt.ctx), codes.Unauthenticated)
		})
	}

	assert.Equal(t, []string{"alice"}, listUsernames(t, env))
}

func TestListUsers_StorageFailure(t *testing.T) {
	db := new(mockstorage.StorageMock)
	env := startTestGRPCServer(t, withMockStorage(db))

	db.On("GetAllUsers", mock.Anything).Return(nil, errors.New("db error"))

	_, err := env.client.ListUsers(context.Background())
	requireCode(t, err, codes.Internal)
}

func TestPing(t *testing.T) {
	env := startTestGRPCServer(t)
	require.NoError(t, env.client.Ping(context.Background()))
}

func TestPing_DBFailure(t *testing.T) {
	db := new(mockstorage.StorageMock)
	env := startTestGRPCServer(t, withMockStorage(db))

	db.On("Ping", mock.Anything).Return(errors.New("db error"))

	requireCode(t, env.client.Ping(context.Background()), codes.Unavailable)
}
