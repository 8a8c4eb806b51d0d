package keys

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aurovest/keydesk/internal/cache"
	"github.com/aurovest/keydesk/internal/platform"
	"github.com/aurovest/keydesk/pkg/models"
)

// The platform caps key listings at 1000 records; the pool never fetches more.
const poolFetchLimit = 1000

const snapshotTTL = 30 * time.Second

// Pool is the in-memory view of unassigned, active keys for a plan. The
// platform owns the inventory; the pool is a session-scoped snapshot,
// refetched whenever the selected plan changes and invalidated after any
// successful mutation.
type Pool struct {
	platform platform.Client
	cache    cache.Cache
}

func NewPool(p platform.Client, c cache.Cache) *Pool {
	return &Pool{platform: p, cache: c}
}

// LoadAvailable fetches a fresh snapshot of assignable keys for the plan:
// status active and no distribution target. On query failure it returns an
// empty slice alongside the error so callers can degrade the view instead of
// failing the screen.
func (p *Pool) LoadAvailable(ctx context.Context, planID string) ([]models.AuthKey, error) {
	keys, err := p.platform.ListKeys(ctx, platform.ListKeysParams{
		Page:   1,
		Limit:  poolFetchLimit,
		PlanID: planID,
		Status: models.KeyStatusActive,
	})
	if err != nil {
		return []models.AuthKey{}, err
	}

	available := make([]models.AuthKey, 0, len(keys))
	for _, k := range keys {
		if k.Assignable() {
			available = append(available, k)
		}
	}
	return available, nil
}

// Snapshot is a read-through cached LoadAvailable for display reads. The
// snapshot key is namespaced by plan, so switching plans never serves another
// plan's pool. Distribution flows always use LoadAvailable directly.
func (p *Pool) Snapshot(ctx context.Context, planID string) ([]models.AuthKey, error) {
	cacheKey := cache.PoolSnapshotKey(planID)

	if raw, found, err := p.cache.Get(ctx, cacheKey); err == nil && found {
		var keys []models.AuthKey
		if err := json.Unmarshal(raw, &keys); err == nil {
			return keys, nil
		}
	}

	keys, err := p.LoadAvailable(ctx, planID)
	if err != nil {
		return keys, err
	}

	if raw, err := json.Marshal(keys); err == nil {
		if err := p.cache.Set(ctx, cacheKey, raw, snapshotTTL); err != nil {
			slog.Warn("pool snapshot cache write failed", "plan_id", planID, "error", err)
		}
	}
	return keys, nil
}

// Invalidate drops the cached snapshot and stats for a plan plus the global
// stats row. Called after every successful mutation; counters are never
// decremented locally.
func (p *Pool) Invalidate(ctx context.Context, planID string) {
	err := p.cache.Delete(ctx,
		cache.PoolSnapshotKey(planID),
		cache.StatsKey(planID),
		cache.StatsKey(""),
	)
	if err != nil {
		slog.Warn("pool cache invalidation failed", "plan_id", planID, "error", err)
	}
}
