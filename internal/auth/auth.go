// Package auth resolves the identity of the caller of an HTTP request or
// gRPC call. It accepts HTTP Basic credentials checked against the stored
// password hash, and JWTs issued after a successful Basic login, carried in
// the Authorization header or the auth cookie.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/password"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

type userKeeper interface {
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	SaveUser(ctx context.Context, usr *user.User) error
}

// CallerIdentity is the authenticated principal of a request.
// Handlers receive it explicitly and pass it down as a value.
type CallerIdentity struct {
	Username string
}

// IsZero reports whether no caller has been resolved.
func (c CallerIdentity) IsZero() bool {
	return c.Username == ""
}

// Auth authenticates callers and issues JWTs for them.
type Auth struct {
	// db is used to look up the stored hash on Basic logins.
	db userKeeper

	// authCookieName is the name of the cookie used to store the JWT.
	authCookieName string

	// authSigningSecretKey is the key used to sign JWTs.
	authSigningSecretKey []byte

	// tokenTTL limits the lifetime of issued tokens; zero means no expiry.
	tokenTTL time.Duration

	// hasher, when set, re-hashes a password on login if its stored hash
	// was produced with other parameters.
	hasher password.Hasher
}

// Option configures an Auth.
type Option func(*Auth)

// WithRehash upgrades stored hashes to hasher's algorithm and cost on
// successful Basic logins.
func WithRehash(hasher password.Hasher) Option {
	return func(a *Auth) {
		a.hasher = hasher
	}
}

// Claims represents the JWT claims used by the system.
// Subject holds the ID of the user the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// CallerKey is the context key under which the resolved CallerIdentity is stored.
const CallerKey ContextKey = "caller"

const (
	basicScheme  = "basic "
	bearerScheme = "bearer "
)

var (
	ErrNoCredentials      = errors.New("no credentials supplied")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token or JWT parsing error")
)

// New creates an Auth with the given user lookup, cookie name, JWT signing
// secret and token lifetime.
func New(
	db userKeeper,
	authCookieName string,
	authSigningSecretKey []byte,
	tokenTTL time.Duration,
	opts ...Option,
) *Auth {
	a := &Auth{
		db:                   db,
		authCookieName:       authCookieName,
		authSigningSecretKey: authSigningSecretKey,
		tokenTTL:             tokenTTL,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller CallerIdentity) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (CallerIdentity, bool) {
	caller, ok := ctx.Value(CallerKey).(CallerIdentity)
	if !ok || caller.IsZero() {
		return CallerIdentity{}, false
	}

	return caller, true
}

// AuthenticateUser is an HTTP middleware that resolves the caller from the
// Authorization header or the auth cookie. Unauthenticated requests get 401.
// After a successful Basic login a fresh JWT is returned in the Authorization
// header and the auth cookie.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		caller, token, err := a.Resolve(request.Context(), a.getAuthorizationFromHeaderOrCookie(request))
		if err != nil {
			if IsUnauthenticated(err) {
				logger.Log.Debugln("Request is not authenticated: ", zap.Error(err))
				response.Header().Set("WWW-Authenticate", `Basic realm="journal"`)
				response.WriteHeader(http.StatusUnauthorized)
				return
			}
			logger.Log.Debugln("Error calling the `a.Resolve()`: ", zap.Error(err))
			response.WriteHeader(http.StatusInternalServerError)
			return
		}

		if token != "" {
			response.Header().Set("Authorization", token)
			http.SetCookie(
				response,
				&http.Cookie{
					Name:     a.authCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
				},
			)
		}

		h.ServeHTTP(response, request.WithContext(WithCaller(request.Context(), caller)))
	}

	return http.HandlerFunc(middleware)
}

// Resolve authenticates an Authorization value. It returns the caller and,
// for a successful Basic login, a newly issued JWT.
//
// A JWT is rejected when its username now belongs to a user other than the
// one it was issued to. A JWT whose username has no stored user still
// resolves.
func (a *Auth) Resolve(ctx context.Context, authorization string) (CallerIdentity, string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return CallerIdentity{}, "", ErrNoCredentials
	}

	if hasScheme(authorization, basicScheme) {
		usr, err := a.verifyBasic(ctx, authorization[len(basicScheme):])
		if err != nil {
			return CallerIdentity{}, "", err
		}

		token, err := a.IssueToken(usr)
		if err != nil {
			return CallerIdentity{}, "", fmt.Errorf("build JWT: %w", err)
		}

		return CallerIdentity{Username: usr.Username}, token, nil
	}

	if hasScheme(authorization, bearerScheme) {
		authorization = strings.TrimSpace(authorization[len(bearerScheme):])
	}

	claims, err := a.parseToken(authorization)
	if err != nil {
		return CallerIdentity{}, "", err
	}

	owner, err := a.db.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		return CallerIdentity{}, "", fmt.Errorf("look up user: %w", err)
	}
	if owner != nil && owner.ID != claims.Subject {
		return CallerIdentity{}, "", fmt.Errorf("%w: username %q is owned by another user", ErrInvalidToken, claims.Username)
	}

	return CallerIdentity{Username: claims.Username}, "", nil
}

// GetCallerFromToken validates a JWT and returns the caller it was issued for.
// It does not consult the storage.
func (a *Auth) GetCallerFromToken(tokenString string) (CallerIdentity, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return CallerIdentity{}, err
	}

	return CallerIdentity{Username: claims.Username}, nil
}

func (a *Auth) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.authSigningSecretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueToken builds a JWT bound to usr's ID and username.
func (a *Auth) IssueToken(usr *user.User) (string, error) {
	return a.BuildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: usr.ID},
		Username:         usr.Username,
	})
}

// BuildJWTString signs claims with HS256, stamping issue and expiry times.
func (a *Auth) BuildJWTString(claims *Claims) (string, error) {
	now := time.Now()
	stamped := *claims
	stamped.IssuedAt = jwt.NewNumericDate(now)
	if a.tokenTTL > 0 {
		stamped.ExpiresAt = jwt.NewNumericDate(now.Add(a.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stamped)

	tokenString, err := token.SignedString(a.authSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (a *Auth) verifyBasic(ctx context.Context, encoded string) (*user.User, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed basic credentials", ErrInvalidCredentials)
	}
	username, pass, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" {
		return nil, fmt.Errorf("%w: malformed basic credentials", ErrInvalidCredentials)
	}

	usr, err := a.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if usr == nil {
		return nil, ErrInvalidCredentials
	}

	matches, err := password.VerifyAny(pass, usr.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !matches {
		return nil, ErrInvalidCredentials
	}

	a.rehashIfNeeded(ctx, usr, pass)

	return usr, nil
}

// rehashIfNeeded stores a fresh hash of plain when the stored one was made
// with another algorithm or cost. Failures are logged and do not fail the login.
func (a *Auth) rehashIfNeeded(ctx context.Context, usr *user.User, plain string) {
	if a.hasher == nil || !a.hasher.NeedsRehash(usr.Password) {
		return
	}

	hash, err := a.hasher.Hash(plain)
	if err != nil {
		logger.Log.Warnln("failed to rehash password", "user", usr.Username, zap.Error(err))
		return
	}

	updated := usr.Clone()
	updated.Password = hash
	if err := a.db.SaveUser(ctx, updated); err != nil {
		logger.Log.Warnln("failed to store rehashed password", "user", usr.Username, zap.Error(err))
		return
	}
	logger.Log.Debugln("password rehashed", "user", usr.Username)
}

func (a *Auth) getAuthorizationFromHeaderOrCookie(request *http.Request) string {
	authorization := request.Header.Get("Authorization")
	if authorization != "" {
		return authorization
	}
	cookie, err := request.Cookie(a.authCookieName)
	if err == nil {
		authorization = cookie.Value
	}

	return authorization
}

func hasScheme(authorization, scheme string) bool {
	return len(authorization) >= len(scheme) && strings.EqualFold(authorization[:len(scheme)], scheme)
}

// IsUnauthenticated reports whether err means the caller could not be
// identified, as opposed to an internal failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrNoCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken)
}
