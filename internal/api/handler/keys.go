package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/pkg/models"
	"github.com/go-chi/chi/v5"
)

// KeyLister defines the interface the listing handlers depend on.
type KeyLister interface {
	ListKeys(ctx context.Context, page, limit int, planID, status string) ([]models.AuthKey, error)
	PoolSnapshot(ctx context.Context, planID string) ([]models.AuthKey, error)
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/auth-keys.
// A failed platform query degrades to an empty listing instead of an error.
func NewListKeysHandler(svc KeyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := queryInt(q.Get("page"), 1)
		limit := queryInt(q.Get("limit"), 20)

		items, err := svc.ListKeys(r.Context(), page, limit, q.Get("plan_id"), q.Get("status"))
		if err != nil {
			response.Degraded(w, []models.AuthKey{}, "key listing unavailable")
			return
		}
		if items == nil {
			items = []models.AuthKey{}
		}
		response.JSON(w, items)
	}
}

// NewPoolHandler returns an http.HandlerFunc for
// GET /api/v1/admin/auth-keys/pool/{planID}.
func NewPoolHandler(svc KeyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "planID")

		pool, err := svc.PoolSnapshot(r.Context(), planID)
		if err != nil {
			response.Degraded(w, []models.AuthKey{}, "key pool unavailable")
			return
		}
		response.JSON(w, map[string]any{
			"plan_id":   planID,
			"available": len(pool),
			"keys":      pool,
		})
	}
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
