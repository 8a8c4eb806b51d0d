package api

import (
	"net/http"

	mw "github.com/aurovest/keydesk/internal/api/middleware"
	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	GenerateHandler   http.HandlerFunc
	ListKeysHandler   http.HandlerFunc
	PoolHandler       http.HandlerFunc
	StatsHandler      http.HandlerFunc
	DistributeHandler http.HandlerFunc
	AssignHandler     http.HandlerFunc
	AccountsHandler   http.HandlerFunc
	ListBatches       http.HandlerFunc
	GetBatch          http.HandlerFunc

	CreateAPIKeyHandler http.HandlerFunc
	ListAPIKeysHandler  http.HandlerFunc
	RevokeAPIKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method("GET", "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/admin/auth-keys/generate", orNotImplemented(deps.GenerateHandler))
		r.Get("/api/v1/admin/auth-keys", orNotImplemented(deps.ListKeysHandler))
		r.Get("/api/v1/admin/auth-keys/pool/{planID}", orNotImplemented(deps.PoolHandler))
		r.Get("/api/v1/admin/auth-keys/stats", orNotImplemented(deps.StatsHandler))
		r.Post("/api/v1/admin/auth-keys/distribute", orNotImplemented(deps.DistributeHandler))
		r.Post("/api/v1/admin/auth-keys/{keyID}/assign", orNotImplemented(deps.AssignHandler))

		r.Get("/api/v1/admin/accounts", orNotImplemented(deps.AccountsHandler))

		r.Get("/api/v1/admin/distribution-batches", orNotImplemented(deps.ListBatches))
		r.Get("/api/v1/admin/distribution-batches/{batchID}", orNotImplemented(deps.GetBatch))

		// Operator key management
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateAPIKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListAPIKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeAPIKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
