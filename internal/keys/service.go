package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aurovest/keydesk/internal/cache"
	"github.com/aurovest/keydesk/internal/metrics"
	"github.com/aurovest/keydesk/internal/platform"
	"github.com/aurovest/keydesk/internal/store"
	"github.com/aurovest/keydesk/pkg/models"
	"github.com/google/uuid"
)

// Generation quantity bounds enforced before the platform is called.
const (
	MinGenerateQuantity = 1
	MaxGenerateQuantity = 1000
)

const statsTTL = 30 * time.Second

// Service orchestrates the key inventory and distribution workflow: admission
// guards, pool loading, sequential allocation, outcome aggregation, the audit
// trail, and cache invalidation.
type Service struct {
	platform platform.Client
	pool     *Pool
	engine   *Engine
	store    store.Store
	cache    cache.Cache
}

func NewService(p platform.Client, st store.Store, c cache.Cache) *Service {
	return &Service{
		platform: p,
		pool:     NewPool(p, c),
		engine:   NewEngine(p),
		store:    st,
		cache:    c,
	}
}

// Generate requests a batch of new keys for a plan. Quantity is guarded
// locally; the platform generates and persists the codes.
func (s *Service) Generate(ctx context.Context, planID string, quantity int) error {
	if quantity < MinGenerateQuantity || quantity > MaxGenerateQuantity {
		return newValidationError(CodeQuantityOutOfRange,
			"quantity must be between %d and %d, got %d", MinGenerateQuantity, MaxGenerateQuantity, quantity)
	}

	start := time.Now()
	err := s.platform.GenerateKeys(ctx, planID, quantity)
	metrics.ObservePlatform("generate_keys", start)
	if err != nil {
		return fmt.Errorf("generate keys: %w", err)
	}

	metrics.ObserveGenerated(quantity)
	s.pool.Invalidate(ctx, planID)
	return nil
}

// BulkParams describes one bulk distribution request.
type BulkParams struct {
	PlanID     string
	AccountIDs []string
	Emails     []string
}

// DistributeBulk runs the full batch workflow. Any guard violation aborts
// before a single remote call; once allocation starts the batch runs to
// completion over all pairs. The summary and ordered outcomes are returned
// even when every pair failed.
func (s *Service) DistributeBulk(ctx context.Context, operatorKeyPrefix string, p BulkParams) (BatchSummary, []Outcome, error) {
	pool, err := s.pool.LoadAvailable(ctx, p.PlanID)
	if err != nil {
		return BatchSummary{}, nil, fmt.Errorf("load key pool: %w", err)
	}

	set := NewRecipientSet(len(pool))
	for _, id := range p.AccountIDs {
		if err := set.AddAccount(models.Account{ID: id}); err != nil {
			return BatchSummary{}, nil, err
		}
	}
	for _, raw := range p.Emails {
		if err := set.AddEmail(raw); err != nil {
			return BatchSummary{}, nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return BatchSummary{}, nil, err
	}

	outcomes, err := s.engine.Allocate(ctx, set.Recipients(), pool)
	if err != nil {
		return BatchSummary{}, nil, err
	}

	summary := Summarize(outcomes)
	metrics.ObserveBatch()
	for _, o := range outcomes {
		metrics.ObserveOutcome(o.Status, o.Recipient.Kind)
	}

	s.recordBatch(ctx, operatorKeyPrefix, p.PlanID, outcomes, summary)

	if summary.Succeeded > 0 {
		s.pool.Invalidate(ctx, p.PlanID)
	}
	return summary, outcomes, nil
}

// recordBatch persists the audit trail. The platform already owns the
// authoritative state, so a failed audit write is logged, not surfaced.
func (s *Service) recordBatch(ctx context.Context, operatorKeyPrefix, planID string, outcomes []Outcome, summary BatchSummary) {
	now := time.Now().UTC()
	batch := &models.DistributionBatch{
		ID:                uuid.New(),
		OperatorKeyPrefix: operatorKeyPrefix,
		PlanID:            planID,
		Requested:         len(outcomes),
		Succeeded:         summary.Succeeded,
		Failed:            summary.Failed,
		CreatedAt:         now,
	}

	rows := make([]*models.DistributionOutcome, 0, len(outcomes))
	for i, o := range outcomes {
		row := &models.DistributionOutcome{
			ID:            uuid.New(),
			BatchID:       batch.ID,
			KeyID:         o.Key.ID,
			KeyCode:       o.Key.Code,
			RecipientKind: o.Recipient.Kind,
			RecipientRef:  o.Recipient.Ref(),
			Status:        o.Status,
			Position:      i,
			CreatedAt:     now,
		}
		if o.ErrorDetail != "" {
			detail := o.ErrorDetail
			row.ErrorDetail = &detail
		}
		rows = append(rows, row)
	}

	if err := s.store.CreateDistributionBatch(ctx, batch, rows); err != nil {
		slog.Error("audit write failed for distribution batch",
			"batch_id", batch.ID, "plan_id", planID, "error", err)
	}
}

// AssignTarget is the single-assignment request: exactly one of AccountID or
// Email, with Confirmed required for the account path.
type AssignTarget struct {
	AccountID string
	Email     string
	Confirmed bool
}

// AssignSingle distributes one key to one recipient through the confirmation
// flow. The key is re-fetched from the plan listing so the already-distributed
// guard runs against fresh data.
func (s *Service) AssignSingle(ctx context.Context, planID, keyID string, target AssignTarget) error {
	start := time.Now()
	listed, err := s.platform.ListKeys(ctx, platform.ListKeysParams{
		Page:   1,
		Limit:  poolFetchLimit,
		PlanID: planID,
	})
	metrics.ObservePlatform("list_keys", start)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	var key *models.AuthKey
	for i := range listed {
		if listed[i].ID == keyID {
			key = &listed[i]
			break
		}
	}
	if key == nil {
		return ErrKeyNotFound
	}

	flow, err := NewSingleAssignment(*key)
	if err != nil {
		return err
	}

	if target.AccountID != "" {
		if err := flow.SelectAccount(models.Account{ID: target.AccountID}); err != nil {
			return err
		}
		if !target.Confirmed {
			return ErrConfirmationRequired
		}
		if err := flow.Confirm(); err != nil {
			return err
		}
	} else {
		if err := flow.SubmitEmail(target.Email); err != nil {
			return err
		}
	}

	if err := flow.Execute(ctx, s.platform); err != nil {
		metrics.ObserveOutcome(models.OutcomeFailed, recipientKindOf(target))
		return err
	}

	s.pool.Invalidate(ctx, planID)
	metrics.ObserveOutcome(models.OutcomeSucceeded, recipientKindOf(target))
	return nil
}

func recipientKindOf(t AssignTarget) string {
	if t.AccountID != "" {
		return RecipientAccount
	}
	return RecipientEmail
}

// Stats returns the inventory view, read through a short-lived cache. When
// the platform payload carries only per-plan rows, the global row is obtained
// by summing them; authoritative values are added up, never recomputed from a
// key listing. On query failure a zero-filled view is returned with the error
// so the caller can degrade instead of failing.
func (s *Service) Stats(ctx context.Context, planID string) (*models.InventoryStats, error) {
	cacheKey := cache.StatsKey(planID)
	if raw, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
		var stats models.InventoryStats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return &stats, nil
		}
	}

	start := time.Now()
	stats, err := s.platform.KeyStats(ctx, planID)
	metrics.ObservePlatform("key_stats", start)
	if err != nil {
		return &models.InventoryStats{StatsByPlan: []models.PlanStats{}}, err
	}

	if stats.StatsByPlan == nil {
		stats.StatsByPlan = []models.PlanStats{}
	}
	fillGlobalFromPlans(stats)

	if raw, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, cacheKey, raw, statsTTL); err != nil {
			slog.Warn("stats cache write failed", "error", err)
		}
	}
	return stats, nil
}

// fillGlobalFromPlans sums per-plan rows into the global counters when the
// payload omitted the global row.
func fillGlobalFromPlans(stats *models.InventoryStats) {
	if stats.Total != 0 || len(stats.StatsByPlan) == 0 {
		return
	}
	for _, p := range stats.StatsByPlan {
		stats.Total += p.Total
		stats.Active += p.Active
		stats.Used += p.Used
		stats.Distributed += p.Distributed
		stats.NotDistributed += p.NotDistributed
		stats.Remaining += p.Remaining
	}
}

// PoolSnapshot returns the cached available-key view for a plan.
func (s *Service) PoolSnapshot(ctx context.Context, planID string) ([]models.AuthKey, error) {
	return s.pool.Snapshot(ctx, planID)
}

// ListKeys proxies the admin key listing with shapes already normalized.
func (s *Service) ListKeys(ctx context.Context, page, limit int, planID, status string) ([]models.AuthKey, error) {
	start := time.Now()
	keys, err := s.platform.ListKeys(ctx, platform.ListKeysParams{
		Page:   page,
		Limit:  limit,
		PlanID: planID,
		Status: status,
	})
	metrics.ObservePlatform("list_keys", start)
	return keys, err
}

// Accounts lists candidate recipients for the selection UI.
func (s *Service) Accounts(ctx context.Context, search string, limit int) ([]models.Account, error) {
	start := time.Now()
	accounts, err := s.platform.ListAccounts(ctx, search, limit)
	metrics.ObservePlatform("list_accounts", start)
	return accounts, err
}
