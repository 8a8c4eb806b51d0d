package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aurovest/keydesk/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Distribution audit ---

// CreateDistributionBatch writes the batch header and its outcome rows in one
// transaction so the audit trail never shows a half-recorded batch.
func (s *PostgresStore) CreateDistributionBatch(ctx context.Context, batch *models.DistributionBatch, outcomes []*models.DistributionOutcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO distribution_batches (id, operator_key_prefix, plan_id, requested, succeeded, failed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID, batch.OperatorKeyPrefix, batch.PlanID, batch.Requested, batch.Succeeded, batch.Failed, batch.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create distribution batch: %w", err)
	}

	for _, o := range outcomes {
		_, err = tx.Exec(ctx,
			`INSERT INTO distribution_outcomes (id, batch_id, key_id, key_code, recipient_kind, recipient_ref, status, error_detail, "position", created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID, o.BatchID, o.KeyID, o.KeyCode, o.RecipientKind, o.RecipientRef, o.Status, o.ErrorDetail, o.Position, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("create distribution outcome: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDistributionBatches(ctx context.Context, filter BatchFilter) ([]*models.DistributionBatch, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	where := ""
	args := []any{}
	if filter.PlanID != "" {
		where = " WHERE plan_id = $1"
		args = append(args, filter.PlanID)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM distribution_batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count distribution batches: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, operator_key_prefix, plan_id, requested, succeeded, failed, created_at
		 FROM distribution_batches%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list distribution batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.DistributionBatch
	for rows.Next() {
		var b models.DistributionBatch
		if err := rows.Scan(&b.ID, &b.OperatorKeyPrefix, &b.PlanID, &b.Requested, &b.Succeeded, &b.Failed, &b.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan distribution batch: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, total, rows.Err()
}

func (s *PostgresStore) GetDistributionBatch(ctx context.Context, id uuid.UUID) (*models.DistributionBatch, []*models.DistributionOutcome, error) {
	var b models.DistributionBatch
	err := s.pool.QueryRow(ctx,
		`SELECT id, operator_key_prefix, plan_id, requested, succeeded, failed, created_at
		 FROM distribution_batches WHERE id = $1`, id,
	).Scan(&b.ID, &b.OperatorKeyPrefix, &b.PlanID, &b.Requested, &b.Succeeded, &b.Failed, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get distribution batch: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, key_id, key_code, recipient_kind, recipient_ref, status, error_detail, "position", created_at
		 FROM distribution_outcomes WHERE batch_id = $1 ORDER BY "position" ASC`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list distribution outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.DistributionOutcome
	for rows.Next() {
		var o models.DistributionOutcome
		if err := rows.Scan(&o.ID, &o.BatchID, &o.KeyID, &o.KeyCode, &o.RecipientKind, &o.RecipientRef,
			&o.Status, &o.ErrorDetail, &o.Position, &o.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan distribution outcome: %w", err)
		}
		outcomes = append(outcomes, &o)
	}
	return &b, outcomes, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
