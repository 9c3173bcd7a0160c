package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
)

// ActiveChecker reports whether a token's user may still act.
type ActiveChecker interface {
	UserActive(ctx context.Context, userID string) (bool, error)
}

// Auth puts the bearer token's actor on the context. Requests without a valid
// token pass through anonymous; RequireAuth rejects them.
func Auth(secret string, users ActiveChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if users != nil {
				active, err := users.UserActive(r.Context(), claims.UserID)
				if err != nil {
					slog.Warn("user active check failed", "userId", claims.UserID, "err", err)
					api.Fail(w, http.StatusServiceUnavailable, "auth_unavailable", "authentication temporarily unavailable", GetRequestID(r.Context()))
					return
				}
				if !active {
					next.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetActor(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
