package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/model"
)

// contextKey is unexported so only this package can set the user.
type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to the user it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// ErrorWriter renders an error response. The handler package provides it,
// which keeps this package free of response formatting.
type ErrorWriter func(w http.ResponseWriter, err error)

// RequireAuth guards a route with an "Authorization: Bearer <token>" header.
//
// A missing or malformed header is apperror.ErrAuthInvalid. On success the
// loaded *model.User is stored in the request context; read it back with
// UserFromContext. A rejected request never reaches next.
func RequireAuth(authn Authenticator, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, apperror.ErrAuthInvalid)
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// bearerToken extracts the token from the Authorization header. The scheme
// is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
