package store

import (
	"context"
	"errors"

	"github.com/aurovest/keydesk/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface for console-owned state: operator API
// keys and the distribution audit trail. Platform entities are never stored here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateDistributionBatch(ctx context.Context, batch *models.DistributionBatch, outcomes []*models.DistributionOutcome) error
	ListDistributionBatches(ctx context.Context, filter BatchFilter) ([]*models.DistributionBatch, int, error)
	GetDistributionBatch(ctx context.Context, id uuid.UUID) (*models.DistributionBatch, []*models.DistributionOutcome, error)
}

// BatchFilter narrows and pages the audit listing.
type BatchFilter struct {
	PlanID string
	Page   int
	Limit  int
}
