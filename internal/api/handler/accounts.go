package handler

import (
	"context"
	"net/http"

	"github.com/aurovest/keydesk/internal/api/response"
	"github.com/aurovest/keydesk/pkg/models"
)

// AccountLister defines the interface the handler depends on.
type AccountLister interface {
	Accounts(ctx context.Context, search string, limit int) ([]models.Account, error)
}

// NewAccountsHandler returns an http.HandlerFunc for GET /api/v1/admin/accounts.
func NewAccountsHandler(svc AccountLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := queryInt(q.Get("limit"), 50)

		accounts, err := svc.Accounts(r.Context(), q.Get("search"), limit)
		if err != nil {
			response.Degraded(w, []models.Account{}, "account listing unavailable")
			return
		}
		if accounts == nil {
			accounts = []models.Account{}
		}
		response.JSON(w, accounts)
	}
}
