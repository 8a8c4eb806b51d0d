package models

import (
	"time"

	"github.com/google/uuid"
)

// Recipient kinds recorded in the audit trail.
const (
	RecipientKindAccount = "account"
	RecipientKindEmail   = "email"
)

// Per-pair distribution outcome statuses.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// DistributionBatch is the audit record for one bulk distribution run.
// The platform owns the keys themselves; the batch exists so operators can
// review who distributed what, and retry failed email recipients.
type DistributionBatch struct {
	ID                uuid.UUID `db:"id"                  json:"id"`
	OperatorKeyPrefix string    `db:"operator_key_prefix" json:"operator_key_prefix"`
	PlanID            string    `db:"plan_id"             json:"plan_id"`
	Requested         int       `db:"requested"           json:"requested"`
	Succeeded         int       `db:"succeeded"           json:"succeeded"`
	Failed            int       `db:"failed"              json:"failed"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
}

// DistributionOutcome is one audit row per attempted pair within a batch.
// Position preserves attempt order.
type DistributionOutcome struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	BatchID       uuid.UUID `db:"batch_id"       json:"batch_id"`
	KeyID         string    `db:"key_id"         json:"key_id"`
	KeyCode       string    `db:"key_code"       json:"key_code"`
	RecipientKind string    `db:"recipient_kind" json:"recipient_kind"`
	RecipientRef  string    `db:"recipient_ref"  json:"recipient_ref"`
	Status        string    `db:"status"         json:"status"`
	ErrorDetail   *string   `db:"error_detail"   json:"error_detail,omitempty"`
	Position      int       `db:"position"       json:"position"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}
