package handler

import (
	"context"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
)

// Pinger is satisfied by the store, the cache, and the platform client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the platform answers its health probe.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. The
// console stays up when the platform is down, so a failed platform probe
// reports degraded rather than unhealthy.
func NewHealthHandler(db, cache Pinger, platform ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"platform": "ok",
		}
		unhealthy := false

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy"
			unhealthy = true
		}
		if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "unhealthy"
			unhealthy = true
		}
		if err := platform.Ready(r.Context()); err != nil {
			checks["platform"] = "degraded"
		}

		if unhealthy {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY",
				"One or more dependencies are unavailable", checks)
			return
		}

		status := "ok"
		if checks["platform"] != "ok" {
			status = "degraded"
		}
		response.JSON(w, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
