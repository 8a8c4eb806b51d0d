package models

// PlanStats holds per-plan inventory counters as computed by the platform.
type PlanStats struct {
	PlanID         string `json:"plan_id"`
	PlanName       string `json:"plan_name,omitempty"`
	Total          int    `json:"total"`
	Active         int    `json:"active"`
	Used           int    `json:"used"`
	Distributed    int    `json:"distributed"`
	NotDistributed int    `json:"not_distributed"`
	Remaining      int    `json:"remaining"`
}

// InventoryStats is the global inventory view plus its per-plan breakdown.
// All counters, Remaining in particular, are authoritative platform values and
// must not be recomputed locally from a key listing.
type InventoryStats struct {
	Total          int         `json:"total"`
	Active         int         `json:"active"`
	Used           int         `json:"used"`
	Distributed    int         `json:"distributed"`
	NotDistributed int         `json:"not_distributed"`
	Remaining      int         `json:"remaining"`
	StatsByPlan    []PlanStats `json:"stats_by_plan"`
}
