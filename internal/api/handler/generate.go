package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
)

// Generator defines the interface the handler depends on.
type Generator interface {
	Generate(ctx context.Context, planID string, quantity int) error
}

// NewGenerateHandler returns an http.HandlerFunc for
// POST /api/v1/admin/auth-keys/generate.
func NewGenerateHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlanID   string `json:"plan_id"`
			Quantity int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.PlanID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "plan_id is required", nil)
			return
		}

		if err := svc.Generate(r.Context(), req.PlanID, req.Quantity); err != nil {
			writeWorkflowError(w, err)
			return
		}

		response.Created(w, map[string]any{
			"plan_id":  req.PlanID,
			"quantity": req.Quantity,
		})
	}
}
