package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/internal/keys"
	"github.com/go-chi/chi/v5"
)

// SingleAssigner defines the interface the handler depends on.
type SingleAssigner interface {
	AssignSingle(ctx context.Context, planID, keyID string, target keys.AssignTarget) error
}

// NewAssignHandler returns an http.HandlerFunc for
// POST /api/v1/admin/auth-keys/{keyID}/assign.
func NewAssignHandler(svc SingleAssigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyID := chi.URLParam(r, "keyID")
		if keyID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "key ID is required", nil)
			return
		}

		var req struct {
			PlanID    string `json:"plan_id"`
			AccountID string `json:"account_id"`
			Email     string `json:"email"`
			Confirm   bool   `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.PlanID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "plan_id is required", nil)
			return
		}
		if (req.AccountID == "") == (req.Email == "") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"exactly one of account_id or email is required", nil)
			return
		}

		err := svc.AssignSingle(r.Context(), req.PlanID, keyID, keys.AssignTarget{
			AccountID: req.AccountID,
			Email:     req.Email,
			Confirmed: req.Confirm,
		})
		if err != nil {
			writeWorkflowError(w, err)
			return
		}

		response.JSON(w, map[string]any{
			"key_id": keyID,
			"status": "assigned",
		})
	}
}
