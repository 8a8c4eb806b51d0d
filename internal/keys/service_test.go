package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aurovest/keydesk/internal/cache"
	"github.com/aurovest/keydesk/internal/platform"
	"github.com/aurovest/keydesk/internal/store"
	"github.com/aurovest/keydesk/pkg/models"
	"github.com/google/uuid"
)

// mockPlatform holds a mutable key inventory so distribution actually consumes
// keys, letting tests observe the refreshed pool after a batch.
type mockPlatform struct {
	mu         sync.Mutex
	keys       []models.AuthKey
	accounts   []models.Account
	stats      *models.InventoryStats
	statsErr   error
	listErr    error
	distribute map[string]error // keyID -> forced failure
	calls      []string
}

func (m *mockPlatform) GenerateKeys(_ context.Context, planID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("generate:%s:%d", planID, quantity))
	for i := 0; i < quantity; i++ {
		m.keys = append(m.keys, models.AuthKey{
			ID:     fmt.Sprintf("%s-k%d", planID, len(m.keys)+1),
			Code:   fmt.Sprintf("AV-%04d", len(m.keys)+1),
			PlanID: planID,
			Status: models.KeyStatusActive,
		})
	}
	return nil
}

func (m *mockPlatform) ListKeys(_ context.Context, params platform.ListKeysParams) ([]models.AuthKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list_keys")
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.AuthKey
	for _, k := range m.keys {
		if params.PlanID != "" && k.PlanID != params.PlanID {
			continue
		}
		if params.Status != "" && k.Status != params.Status {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (m *mockPlatform) KeyStats(_ context.Context, _ string) (*models.InventoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "key_stats")
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	stats := *m.stats
	return &stats, nil
}

func (m *mockPlatform) DistributeToAccount(_ context.Context, keyID, accountID string) error {
	return m.distributeTo(keyID, "account", accountID)
}

func (m *mockPlatform) DistributeToEmail(_ context.Context, keyID, email string) error {
	return m.distributeTo(keyID, "email", email)
}

func (m *mockPlatform) distributeTo(keyID, kind, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("distribute:%s:%s:%s", kind, keyID, ref))
	if err, ok := m.distribute[keyID]; ok {
		return err
	}
	for i := range m.keys {
		if m.keys[i].ID == keyID {
			if kind == "account" {
				m.keys[i].DistributedToAccountID = &ref
			} else {
				m.keys[i].DistributedToEmail = &ref
			}
			return nil
		}
	}
	return fmt.Errorf("%w: key not found", platform.ErrRejected)
}

func (m *mockPlatform) ListAccounts(_ context.Context, _ string, _ int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list_accounts")
	return m.accounts, nil
}

func (m *mockPlatform) Ready(_ context.Context) error { return nil }

func (m *mockPlatform) countCalls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

var _ platform.Client = (*mockPlatform)(nil)

// mockStore captures the audit trail; the API key methods are unused here.
type mockStore struct {
	batches   []*models.DistributionBatch
	outcomes  map[uuid.UUID][]*models.DistributionOutcome
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{outcomes: make(map[uuid.UUID][]*models.DistributionOutcome)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error)   { return nil, nil }
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error         { return nil }

func (s *mockStore) CreateDistributionBatch(_ context.Context, batch *models.DistributionBatch, outcomes []*models.DistributionOutcome) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.batches = append(s.batches, batch)
	s.outcomes[batch.ID] = outcomes
	return nil
}

func (s *mockStore) ListDistributionBatches(_ context.Context, _ store.BatchFilter) ([]*models.DistributionBatch, int, error) {
	return s.batches, len(s.batches), nil
}

func (s *mockStore) GetDistributionBatch(_ context.Context, id uuid.UUID) (*models.DistributionBatch, []*models.DistributionOutcome, error) {
	for _, b := range s.batches {
		if b.ID == id {
			return b, s.outcomes[id], nil
		}
	}
	return nil, nil, store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// memCache is an in-memory stand-in for Redis.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

var _ cache.Cache = (*memCache)(nil)

func newTestService(t *testing.T) (*Service, *mockPlatform, *mockStore, *memCache) {
	t.Helper()
	p := &mockPlatform{}
	st := newMockStore()
	c := newMemCache()
	return NewService(p, st, c), p, st, c
}

func TestDistributeBulk_FullWorkflow(t *testing.T) {
	svc, p, st, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Generate(ctx, "plan-gold", 10); err != nil {
		t.Fatalf("generate: %v", err)
	}

	summary, outcomes, err := svc.DistributeBulk(ctx, "kd_test1", BulkParams{
		PlanID:     "plan-gold",
		AccountIDs: []string{"acct-1", "acct-2"},
		Emails:     []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if summary.Succeeded != 3 || summary.Failed != 0 {
		t.Errorf("expected 3/0, got %d/%d", summary.Succeeded, summary.Failed)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if got := p.countCalls("distribute:"); got != 3 {
		t.Errorf("expected 3 distribute calls, got %d", got)
	}

	// Audit trail recorded with the operator prefix and per-pair rows.
	if len(st.batches) != 1 {
		t.Fatalf("expected 1 audit batch, got %d", len(st.batches))
	}
	batch := st.batches[0]
	if batch.OperatorKeyPrefix != "kd_test1" || batch.Requested != 3 || batch.Succeeded != 3 {
		t.Errorf("unexpected batch: %+v", batch)
	}
	rows := st.outcomes[batch.ID]
	if len(rows) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Position != i {
			t.Errorf("row %d: expected position %d, got %d", i, i, row.Position)
		}
	}

	// The platform inventory shrank; a fresh pool shows 7 assignable keys.
	pool, err := svc.PoolSnapshot(ctx, "plan-gold")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(pool) != 7 {
		t.Errorf("expected 7 remaining keys, got %d", len(pool))
	}
}

func TestDistributeBulk_GuardFailureIssuesNoRemoteCalls(t *testing.T) {
	svc, p, st, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 5)
	p.calls = nil

	_, _, err := svc.DistributeBulk(ctx, "kd_test1", BulkParams{
		PlanID: "plan-gold",
		Emails: []string{"ok@example.com", "not-an-email"},
	})
	requireValidationCode(t, err, CodeInvalidEmailSyntax)

	if got := p.countCalls("distribute:"); got != 0 {
		t.Errorf("expected zero distribute calls, got %d", got)
	}
	if len(st.batches) != 0 {
		t.Errorf("expected no audit batch, got %d", len(st.batches))
	}
}

func TestDistributeBulk_CapacityBoundByPool(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 1)

	_, _, err := svc.DistributeBulk(ctx, "kd_test1", BulkParams{
		PlanID:     "plan-gold",
		AccountIDs: []string{"acct-1", "acct-2"},
	})
	requireValidationCode(t, err, CodeCapacityExceeded)
	if got := p.countCalls("distribute:"); got != 0 {
		t.Errorf("expected zero distribute calls, got %d", got)
	}
}

func TestDistributeBulk_EmptySelection(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 5)

	_, _, err := svc.DistributeBulk(ctx, "kd_test1", BulkParams{PlanID: "plan-gold"})
	requireValidationCode(t, err, CodeEmptySelection)
}

func TestDistributeBulk_PartialFailureRunsToCompletion(t *testing.T) {
	svc, p, st, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 4)
	p.distribute = map[string]error{
		"plan-gold-k2": fmt.Errorf("%w: key already distributed", platform.ErrRejected),
	}

	summary, outcomes, err := svc.DistributeBulk(ctx, "kd_test1", BulkParams{
		PlanID:     "plan-gold",
		AccountIDs: []string{"acct-1", "acct-2", "acct-3"},
		Emails:     []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if summary.Succeeded != 3 || summary.Failed != 1 {
		t.Errorf("expected 3/1, got %d/%d", summary.Succeeded, summary.Failed)
	}
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	if outcomes[1].Status != models.OutcomeFailed || outcomes[1].ErrorDetail == "" {
		t.Errorf("unexpected outcome 1: %+v", outcomes[1])
	}

	// The failed pair still lands in the audit trail with its error detail.
	rows := st.outcomes[st.batches[0].ID]
	if rows[1].ErrorDetail == nil {
		t.Error("expected error detail on audit row 1")
	}
}

func TestDistributeBulk_PoolLoadFailureDegrades(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	p.listErr = platform.ErrUnreachable

	_, _, err := svc.DistributeBulk(context.Background(), "kd_test1", BulkParams{
		PlanID:     "plan-gold",
		AccountIDs: []string{"acct-1"},
	})
	if !errors.Is(err, platform.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if got := p.countCalls("distribute:"); got != 0 {
		t.Errorf("expected zero distribute calls, got %d", got)
	}
}

func TestGenerate_QuantityBounds(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()

	for _, q := range []int{0, -1, 1001} {
		err := svc.Generate(ctx, "plan-gold", q)
		requireValidationCode(t, err, CodeQuantityOutOfRange)
	}
	if got := p.countCalls("generate:"); got != 0 {
		t.Errorf("expected zero generate calls, got %d", got)
	}

	if err := svc.Generate(ctx, "plan-gold", 1000); err != nil {
		t.Fatalf("quantity 1000 should be accepted: %v", err)
	}
}

func TestGenerate_InvalidatesCachedViews(t *testing.T) {
	svc, _, _, c := newTestService(t)
	ctx := context.Background()

	_ = c.Set(ctx, cache.PoolSnapshotKey("plan-gold"), []byte("[]"), time.Minute)
	_ = c.Set(ctx, cache.StatsKey("plan-gold"), []byte("{}"), time.Minute)
	_ = c.Set(ctx, cache.StatsKey(""), []byte("{}"), time.Minute)

	if err := svc.Generate(ctx, "plan-gold", 5); err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, key := range []string{
		cache.PoolSnapshotKey("plan-gold"),
		cache.StatsKey("plan-gold"),
		cache.StatsKey(""),
	} {
		if c.has(key) {
			t.Errorf("expected %s to be invalidated", key)
		}
	}
}

func TestAssignSingle_AccountRequiresConfirmation(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 1)

	err := svc.AssignSingle(ctx, "plan-gold", "plan-gold-k1", AssignTarget{AccountID: "acct-1"})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if got := p.countCalls("distribute:"); got != 0 {
		t.Errorf("expected zero distribute calls, got %d", got)
	}

	err = svc.AssignSingle(ctx, "plan-gold", "plan-gold-k1", AssignTarget{AccountID: "acct-1", Confirmed: true})
	if err != nil {
		t.Fatalf("confirmed assignment: %v", err)
	}
	if got := p.countCalls("distribute:account"); got != 1 {
		t.Errorf("expected 1 account distribute call, got %d", got)
	}
}

func TestAssignSingle_EmailSkipsConfirmation(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 1)

	err := svc.AssignSingle(ctx, "plan-gold", "plan-gold-k1", AssignTarget{Email: "Ops@Example.com"})
	if err != nil {
		t.Fatalf("email assignment: %v", err)
	}
	if got := p.countCalls("distribute:email:plan-gold-k1:ops@example.com"); got != 1 {
		t.Errorf("expected normalized email distribute call, calls: %v", p.calls)
	}
}

func TestAssignSingle_KeyNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 1)

	err := svc.AssignSingle(ctx, "plan-gold", "missing", AssignTarget{Email: "ops@example.com"})
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestAssignSingle_AlreadyDistributed(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 1)
	target := "acct-9"
	p.keys[0].DistributedToAccountID = &target

	err := svc.AssignSingle(ctx, "plan-gold", "plan-gold-k1", AssignTarget{Email: "ops@example.com"})
	if !errors.Is(err, ErrAlreadyDistributed) {
		t.Fatalf("expected ErrAlreadyDistributed, got %v", err)
	}
	if got := p.countCalls("distribute:"); got != 0 {
		t.Errorf("expected zero distribute calls, got %d", got)
	}
}

func TestStats_SumsPlanRowsWhenGlobalMissing(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	p.stats = &models.InventoryStats{
		StatsByPlan: []models.PlanStats{
			{PlanID: "plan-gold", Total: 10, Active: 8, Used: 2, Distributed: 4, NotDistributed: 6, Remaining: 6},
			{PlanID: "plan-silver", Total: 5, Active: 5, Distributed: 1, NotDistributed: 4, Remaining: 4},
		},
	}

	stats, err := svc.Stats(context.Background(), "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 15 || stats.Active != 13 || stats.Used != 2 {
		t.Errorf("unexpected summed totals: %+v", stats)
	}
	if stats.Remaining != 10 {
		t.Errorf("expected remaining 10, got %d", stats.Remaining)
	}
}

func TestStats_KeepsAuthoritativeGlobalRow(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	// The global row disagrees with the plan sum; it must win untouched.
	p.stats = &models.InventoryStats{
		Total: 100, Active: 90, Remaining: 42,
		StatsByPlan: []models.PlanStats{
			{PlanID: "plan-gold", Total: 10, Remaining: 6},
		},
	}

	stats, err := svc.Stats(context.Background(), "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 100 || stats.Remaining != 42 {
		t.Errorf("global row recomputed: %+v", stats)
	}
}

func TestStats_QueryFailureReturnsZeroView(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	p.statsErr = platform.ErrTimeout

	stats, err := svc.Stats(context.Background(), "plan-gold")
	if !errors.Is(err, platform.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if stats == nil {
		t.Fatal("expected a zero-filled view, got nil")
	}
	if stats.Total != 0 || len(stats.StatsByPlan) != 0 {
		t.Errorf("expected zero view, got %+v", stats)
	}
}

func TestStats_ReadThroughCache(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	p.stats = &models.InventoryStats{Total: 3, Active: 3, Remaining: 3, StatsByPlan: []models.PlanStats{}}
	ctx := context.Background()

	if _, err := svc.Stats(ctx, "plan-gold"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if _, err := svc.Stats(ctx, "plan-gold"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := p.countCalls("key_stats"); got != 1 {
		t.Errorf("expected 1 platform stats call, got %d", got)
	}
}

func TestPoolSnapshot_ReadThroughCache(t *testing.T) {
	svc, p, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 3)
	p.calls = nil

	if _, err := svc.PoolSnapshot(ctx, "plan-gold"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := svc.PoolSnapshot(ctx, "plan-gold"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got := p.countCalls("list_keys"); got != 1 {
		t.Errorf("expected 1 platform listing, got %d", got)
	}
}

func TestPoolSnapshot_PlanNamespacing(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_ = svc.Generate(ctx, "plan-gold", 3)
	_ = svc.Generate(ctx, "plan-silver", 1)

	gold, _ := svc.PoolSnapshot(ctx, "plan-gold")
	silver, _ := svc.PoolSnapshot(ctx, "plan-silver")
	if len(gold) != 3 || len(silver) != 1 {
		t.Errorf("expected 3/1, got %d/%d", len(gold), len(silver))
	}
}
