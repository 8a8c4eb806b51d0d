package handler

import (
	"context"
	"encoding/json"
	"net/http"

	mw "github.com/aurovest/keydesk/internal/api/middleware"
	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/internal/keys"
)

// BulkDistributor defines the interface the handler depends on.
type BulkDistributor interface {
	DistributeBulk(ctx context.Context, operatorKeyPrefix string, p keys.BulkParams) (keys.BatchSummary, []keys.Outcome, error)
}

type outcomeRow struct {
	Position      int    `json:"position"`
	KeyID         string `json:"key_id"`
	KeyCode       string `json:"key_code"`
	RecipientKind string `json:"recipient_kind"`
	Recipient     string `json:"recipient"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// NewDistributeHandler returns an http.HandlerFunc for
// POST /api/v1/admin/auth-keys/distribute.
func NewDistributeHandler(svc BulkDistributor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := mw.GetKeyPrefix(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing operator key", nil)
			return
		}

		var req struct {
			PlanID     string   `json:"plan_id"`
			AccountIDs []string `json:"account_ids"`
			Emails     []string `json:"emails"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.PlanID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "plan_id is required", nil)
			return
		}

		summary, outcomes, err := svc.DistributeBulk(r.Context(), prefix, keys.BulkParams{
			PlanID:     req.PlanID,
			AccountIDs: req.AccountIDs,
			Emails:     req.Emails,
		})
		if err != nil {
			writeWorkflowError(w, err)
			return
		}

		rows := make([]outcomeRow, len(outcomes))
		for i, o := range outcomes {
			rows[i] = outcomeRow{
				Position:      i,
				KeyID:         o.Key.ID,
				KeyCode:       o.Key.Code,
				RecipientKind: o.Recipient.Kind,
				Recipient:     o.Recipient.Ref(),
				Status:        o.Status,
				Error:         o.ErrorDetail,
			}
		}

		response.JSON(w, map[string]any{
			"summary":  summary,
			"outcomes": rows,
		})
	}
}
