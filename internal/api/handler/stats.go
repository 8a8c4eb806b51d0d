package handler

import (
	"context"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/pkg/models"
)

// StatsReader defines the interface the handler depends on.
type StatsReader interface {
	Stats(ctx context.Context, planID string) (*models.InventoryStats, error)
}

// NewStatsHandler returns an http.HandlerFunc for
// GET /api/v1/admin/auth-keys/stats. On platform failure the zero-filled view
// is served with a degraded marker; counters are never derived locally.
func NewStatsHandler(svc StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := r.URL.Query().Get("plan_id")

		stats, err := svc.Stats(r.Context(), planID)
		if err != nil {
			response.Degraded(w, stats, "inventory stats unavailable")
			return
		}
		response.JSON(w, stats)
	}
}
