package kv

import (
	"context"

	"github.com/mkuznecovs/authkeeper/internal/models"
)

// Repository is a generic name -> value store for internal state slots.
type Repository interface {
	// Set inserts or updates the row for kv.Name. See PostgresRepository.Set
	// for the concurrency caveat on first writers.
	Set(ctx context.Context, kv *models.KeyValue) error

	// Get returns the row for name, or common.ErrorNotFound.
	Get(ctx context.Context, name string) (*models.KeyValue, error)

	// GetForUpdate is Get under a pessimistic write lock. Only meaningful
	// when the repository is bound to a transaction; it serializes against
	// concurrent writers of the same key.
	GetForUpdate(ctx context.Context, name string) (*models.KeyValue, error)

	// Delete removes the row for name. Deleting an absent row is a no-op.
	Delete(ctx context.Context, name string) error
}
