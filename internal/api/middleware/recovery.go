package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/aurovest/keydesk/internal/api/response"
)

// Recovery converts handler panics into a 500 envelope, attributed to the
// operator when authentication already resolved one.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				attrs := []any{
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				}
				if prefix := tracedPrefix(r); prefix != "" {
					attrs = append(attrs, "operator", prefix)
				}
				slog.Error("panic recovered", attrs...)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
