package cache

import "fmt"

// PoolSnapshotKey namespaces the available-key snapshot by plan so switching
// plans can never serve a stale pool from another plan.
func PoolSnapshotKey(planID string) string {
	return fmt.Sprintf("keys:pool:%s", planID)
}

// StatsKey caches the inventory stats payload; planID is empty for the
// global view.
func StatsKey(planID string) string {
	if planID == "" {
		return "keys:stats:global"
	}
	return fmt.Sprintf("keys:stats:%s", planID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
