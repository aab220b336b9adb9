package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/journalapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/mockstorage"
	"github.com/patric-chuzhbe/journalapp/internal/password"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

const testCookieName = "auth"

var testSigningKey = []byte("test-signing-key")

func setupAuth(t *testing.T) (*Auth, *memorystorage.MemoryStorage) {
	t.Helper()
	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	hash, err := password.NewBcryptHasher(&password.BcryptConfig{Cost: 4}).Hash("secret")
	require.NoError(t, err)
	require.NoError(t, db.SaveUser(context.Background(), &user.User{
		Username: "alice",
		Password: hash,
		Roles:    []string{user.RoleUser},
	}))

	return New(db, testCookieName, testSigningKey, time.Hour), db
}

func basic(username, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+pass))
}

func TestResolve(t *testing.T) {
	theAuth, db := setupAuth(t)

	alice, err := db.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)

	validToken, err := theAuth.IssueToken(alice)
	require.NoError(t, err)

	// Issued to an earlier "alice" that has since renamed; the name now
	// belongs to the stored row with another ID.
	previousOwnerToken, err := theAuth.BuildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "previous-alice-id"},
		Username:         "alice",
	})
	require.NoError(t, err)

	unboundToken, err := theAuth.BuildJWTString(&Claims{Username: "alice"})
	require.NoError(t, err)

	otherKeyToken, err := New(nil, testCookieName, []byte("another-key"), time.Hour).
		BuildJWTString(&Claims{Username: "alice"})
	require.NoError(t, err)

	expiredToken, err := New(nil, testCookieName, testSigningKey, 0).BuildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Username: "alice",
	})
	require.NoError(t, err)

	ghostToken, err := theAuth.BuildJWTString(&Claims{Username: "ghost"})
	require.NoError(t, err)

	testCases := []struct {
		name          string
		authorization string
		wantCaller    string
		wantToken     bool
		wantErr       error
	}{
		{name: "basic", authorization: basic("alice", "secret"), wantCaller: "alice", wantToken: true},
		{name: "basic_lower_case_scheme", authorization: "basic " + basic("alice", "secret")[len("Basic "):], wantCaller: "alice", wantToken: true},
		{name: "basic_wrong_password", authorization: basic("alice", "nope"), wantErr: ErrInvalidCredentials},
		{name: "basic_unknown_user", authorization: basic("bob", "secret"), wantErr: ErrInvalidCredentials},
		{name: "basic_garbage", authorization: "Basic !!!", wantErr: ErrInvalidCredentials},
		{name: "bearer", authorization: "Bearer " + validToken, wantCaller: "alice"},
		{name: "raw_jwt", authorization: validToken, wantCaller: "alice"},
		{name: "jwt_for_deleted_user", authorization: ghostToken, wantCaller: "ghost"},
		{name: "jwt_of_previous_owner", authorization: "Bearer " + previousOwnerToken, wantErr: ErrInvalidToken},
		{name: "jwt_without_subject", authorization: unboundToken, wantErr: ErrInvalidToken},
		{name: "foreign_key", authorization: otherKeyToken, wantErr: ErrInvalidToken},
		{name: "expired", authorization: expiredToken, wantErr: ErrInvalidToken},
		{name: "empty", authorization: "", wantErr: ErrNoCredentials},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			caller, token, err := theAuth.Resolve(context.Background(), testCase.authorization)
			if testCase.wantErr != nil {
				assert.ErrorIs(t, err, testCase.wantErr)
				assert.True(t, IsUnauthenticated(err))
				assert.True(t, caller.IsZero())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.wantCaller, caller.Username)
			assert.Equal(t, testCase.wantToken, token != "")
			if testCase.wantToken {
				fromToken, err := theAuth.GetCallerFromToken(token)
				require.NoError(t, err)
				assert.Equal(t, caller, fromToken)
			}
		})
	}
}

func TestAuthenticateUser(t *testing.T) {
	theAuth, _ := setupAuth(t)

	handler := theAuth.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = fmt.Fprint(w, caller.Username)
	}))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	t.Run("no_credentials", func(t *testing.T) {
		resp, err := resty.New().R().Get(srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
		assert.Contains(t, resp.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("basic_issues_token_and_cookie", func(t *testing.T) {
		resp, err := resty.New().R().SetBasicAuth("alice", "secret").Get(srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "alice", resp.String())

		token := resp.Header().Get("Authorization")
		require.NotEmpty(t, token)

		var cookieValue string
		for _, cookie := range resp.Cookies() {
			if cookie.Name == testCookieName {
				cookieValue = cookie.Value
			}
		}
		assert.Equal(t, token, cookieValue)

		resp, err = resty.New().R().SetCookie(&http.Cookie{Name: testCookieName, Value: token}).Get(srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "alice", resp.String())

		resp, err = resty.New().R().SetAuthToken(token).Get(srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Empty(t, resp.Header().Get("Authorization"))
	})

	t.Run("bad_password", func(t *testing.T) {
		resp, err := resty.New().R().SetBasicAuth("alice", "wrong").Get(srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	})
}

func TestResolve_TokenOwnerLookupFailure(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := new(mockstorage.StorageMock)
	db.On("GetUserByUsername", mock.Anything, "alice").Return(nil, errors.New("db down"))

	theAuth := New(db, testCookieName, testSigningKey, time.Hour)
	token, err := theAuth.BuildJWTString(&Claims{Username: "alice"})
	require.NoError(t, err)

	_, _, err = theAuth.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.False(t, IsUnauthenticated(err))
	db.AssertExpectations(t)
}

func TestResolve_RehashOnLogin(t *testing.T) {
	require.NoError(t, logger.Init("debug"))
	ctx := context.Background()

	db, err := memorystorage.New()
	require.NoError(t, err)

	bcryptHash, err := password.NewBcryptHasher(&password.BcryptConfig{Cost: 4}).Hash("secret")
	require.NoError(t, err)
	require.NoError(t, db.SaveUser(ctx, &user.User{
		Username: "alice",
		Password: bcryptHash,
		Roles:    []string{user.RoleUser},
	}))

	argon2Hasher := password.NewArgon2Hasher(&password.Argon2Config{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	theAuth := New(db, testCookieName, testSigningKey, time.Hour, WithRehash(argon2Hasher))

	_, _, err = theAuth.Resolve(ctx, basic("alice", "secret"))
	require.NoError(t, err)

	stored, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, strings.HasPrefix(stored.Password, "$argon2id$"))
	assert.False(t, argon2Hasher.NeedsRehash(stored.Password))
	assert.Equal(t, []string{user.RoleUser}, stored.Roles)

	upgraded := stored.Password
	_, _, err = theAuth.Resolve(ctx, basic("alice", "secret"))
	require.NoError(t, err)

	stored, err = db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, upgraded, stored.Password, "an up-to-date hash is left alone")

	_, _, err = theAuth.Resolve(ctx, basic("alice", "wrong"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolve_NoRehashWithoutOption(t *testing.T) {
	theAuth, db := setupAuth(t)
	ctx := context.Background()

	before, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	_, _, err = theAuth.Resolve(ctx, basic("alice", "secret"))
	require.NoError(t, err)

	after, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)
}

func TestCallerFromContext(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)

	_, ok = CallerFromContext(WithCaller(context.Background(), CallerIdentity{}))
	assert.False(t, ok)

	caller, ok := CallerFromContext(WithCaller(context.Background(), CallerIdentity{Username: "alice"}))
	assert.True(t, ok)
	assert.Equal(t, "alice", caller.Username)
}
