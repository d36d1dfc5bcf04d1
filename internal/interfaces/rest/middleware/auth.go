package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/marketloop/order-engine/internal/application"
	"github.com/marketloop/order-engine/internal/interfaces/rest"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Identity extracts the caller resolved upstream by the API edge. Requests
// without an X-User-ID header are rejected before reaching any handler.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				rest.WriteError(w, application.NewUnauthenticatedError(), logger)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the caller identity placed in the context by Identity.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
