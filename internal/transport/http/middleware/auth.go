package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-fanout-relay/internal/application/session"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// Authenticator resolves a raw session token to its claims.
type Authenticator interface {
	Authenticate(raw string) (*session.Claims, error)
}

// Auth returns middleware that validates the session token and injects its
// claims into the context. The token comes from a Bearer Authorization header
// or, for browser websocket clients that cannot set headers, the token query
// parameter.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := authn.Authenticate(raw)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// ClaimsFromContext extracts session claims from the request context.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*session.Claims)
	return c, ok
}
