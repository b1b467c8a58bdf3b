package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

type contextKey string

const principalContextKey contextKey = "principal"

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// TokenFromRequest returns the bearer token, falling back to the token query parameter
func TokenFromRequest(r *http.Request) string {
	if tok := jwtauth.TokenFromHeader(r); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Verifier verifies the bearer token with jwtauth and stores it in the context
func Verifier(tm *TokenManager) func(http.Handler) http.Handler {
	return jwtauth.Verify(tm.JWTAuth(), jwtauth.TokenFromHeader)
}

// RequireAuth rejects requests without a valid, unrevoked token and stores the Principal
func RequireAuth(tm *TokenManager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			p, err := principalFromClaims(token.JwtID(), token.Expiration(), claims)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := tm.checkRevoked(r.Context(), p); err != nil {
				if errors.Is(err, ErrTokenRevoked) {
					writeError(w, http.StatusUnauthorized, "token revoked")
					return
				}
				logger.Error("Token revocation check failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to verify token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects authenticated callers without the role
func RequireRole(role database.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !p.HasRole(role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext retrieves the caller from the request context
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal adds the caller to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
