// Package authenticator declares what the HTTP router needs from an
// authentication layer, so tests can substitute a stub.
package authenticator

import "net/http"

type Authenticator interface {
	// AuthenticateUser must put an auth.CallerIdentity on the request
	// context or reject the request.
	AuthenticateUser(h http.Handler) http.Handler
}
