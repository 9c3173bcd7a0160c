package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hrpay/internal/platform/requestctx"
)

// RequestID trusts an incoming X-Request-ID up to 64 characters and mints a
// UUID otherwise. The client IP is stored alongside it for audit events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestctx.WithRequestID(r.Context(), reqID)
		ctx = requestctx.WithClientIP(ctx, strings.TrimPrefix(ClientIPKey(r), "ip:"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
