package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/issue-tracker/internal/model"
)

var errNoToken = errors.New("auth: no bearer token presented")

// CallerResolver resolves an opaque bearer token key to the user it belongs
// to. The auth service implements this against the tokens table.
type CallerResolver interface {
	ResolveToken(ctx context.Context, key string) (*model.User, error)
}

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the caller value.
type contextKey string

const callerKey contextKey = "caller"

// RequireAuth enforces authentication on protected routes.
//
// It reads the "Authorization: Bearer <key>" header, resolves the key to a
// user, and stores that user in the request context. Missing or invalid
// credentials end the request with 401.
func RequireAuth(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveCaller(r, resolver)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthenticated","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the caller when a valid token is present but never
// blocks the request. Used on the public issue-creation endpoints, where
// anonymous submissions are allowed and authenticated ones keep their owner.
func OptionalAuth(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := resolveCaller(r, resolver); err == nil && user != nil {
				r = r.WithContext(context.WithValue(r.Context(), callerKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext retrieves the authenticated user from the request
// context. Returns (nil, false) for anonymous requests.
func CallerFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(callerKey).(*model.User)
	return user, ok && user != nil
}

// resolveCaller reads and validates the bearer token header.
func resolveCaller(r *http.Request, resolver CallerResolver) (*model.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errNoToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil, errNoToken
	}

	return resolver.ResolveToken(r.Context(), parts[1])
}
