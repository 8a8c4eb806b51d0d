package models

import "time"

// Key lifecycle statuses as reported by the platform. Transitions are monotone:
// active -> used | expired | cancelled, never out of a terminal state.
const (
	KeyStatusActive    = "active"
	KeyStatusUsed      = "used"
	KeyStatusExpired   = "expired"
	KeyStatusCancelled = "cancelled"
)

// AuthKey is one redeemable authentication key owned by the platform.
// KeyDesk never persists these; every AuthKey in memory is a snapshot of a
// platform record.
type AuthKey struct {
	ID                      string     `json:"id"`
	Code                    string     `json:"code"`
	PlanID                  string     `json:"plan_id"`
	PlanName                string     `json:"plan_name,omitempty"`
	Status                  string     `json:"status"`
	DistributedToAccountID  *string    `json:"distributed_to_account_id,omitempty"`
	DistributedToEmail      *string    `json:"distributed_to_email,omitempty"`
	UsedByAccountID         *string    `json:"used_by_account_id,omitempty"`
	UsedAt                  *time.Time `json:"used_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// Distributed reports whether the key already has a distribution target.
// A distributed key is never offered for assignment again.
func (k AuthKey) Distributed() bool {
	return k.DistributedToAccountID != nil || k.DistributedToEmail != nil
}

// Assignable reports whether the key can still be paired with a recipient.
func (k AuthKey) Assignable() bool {
	return k.Status == KeyStatusActive && !k.Distributed()
}
