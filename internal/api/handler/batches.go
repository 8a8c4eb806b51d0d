package handler

import (
	"errors"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// NewListBatchesHandler returns an http.HandlerFunc for
// GET /api/v1/admin/distribution-batches.
func NewListBatchesHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.BatchFilter{
			PlanID: q.Get("plan_id"),
			Page:   queryInt(q.Get("page"), 1),
			Limit:  queryInt(q.Get("limit"), 20),
		}

		batches, total, err := s.ListDistributionBatches(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list distribution batches", nil)
			return
		}

		response.Collection(w, batches, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: total > filter.Page*filter.Limit,
		})
	}
}

// NewGetBatchHandler returns an http.HandlerFunc for
// GET /api/v1/admin/distribution-batches/{batchID}.
func NewGetBatchHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_BATCH_ID", "Invalid batch ID", nil)
			return
		}

		batch, outcomes, err := s.GetDistributionBatch(r.Context(), batchID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "BATCH_NOT_FOUND", "Distribution batch not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load distribution batch", nil)
			return
		}

		response.JSON(w, map[string]any{
			"batch":    batch,
			"outcomes": outcomes,
		})
	}
}
