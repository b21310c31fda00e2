// Package jwtsigning implements the PostgreSQL-backed JWT signing key store.
// Keys are append-only; rotation services read them newest-first under a
// write lock so only one process mints the first key.
package jwtsigning

import (
	"context"
	"fmt"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// Repository persists JWT signing keys.
type Repository interface {
	List(ctx context.Context, db dbx.DBTX) ([]*models.JWTSigningKey, error)
	ListForUpdate(ctx context.Context, tx dbx.DBTX) ([]*models.JWTSigningKey, error)
	Insert(ctx context.Context, tx dbx.DBTX, key *models.JWTSigningKey) error
}

// PostgresRepository implements Repository. The locked read and the insert
// take an explicit transaction: the lock taken by ListForUpdate must still
// be held when Insert runs.
type PostgresRepository struct {
	cfg *config.Config
}

// NewPostgresRepository constructs a repository for the given configuration.
func NewPostgresRepository(cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{cfg: cfg}
}

const keyColumns = "key_id, key_string, algorithm, created_at"

// List returns every key newest-first without locking, for read-only key
// lookups such as verification.
func (r *PostgresRepository) List(ctx context.Context, db dbx.DBTX) ([]*models.JWTSigningKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`,
		keyColumns, r.cfg.JWTSigningKeysTable())
	return r.list(ctx, db, query)
}

// ListForUpdate returns every key newest-first, locking the rows. With no
// rows present the lock degrades to nothing, so callers racing to mint the
// first key must serialise on the insert's unique key id instead.
func (r *PostgresRepository) ListForUpdate(ctx context.Context, tx dbx.DBTX) ([]*models.JWTSigningKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC FOR UPDATE`,
		keyColumns, r.cfg.JWTSigningKeysTable())
	return r.list(ctx, tx, query)
}

func (r *PostgresRepository) list(ctx context.Context, db dbx.DBTX, query string) ([]*models.JWTSigningKey, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.JWTSigningKey
	for rows.Next() {
		k := &models.JWTSigningKey{}
		if err := rows.Scan(&k.KeyID, &k.KeyString, &k.Algorithm, &k.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert appends a key. A clashing key id surfaces as common.ErrDuplicateKey,
// which is how the loser of a first-key race learns to re-read.
func (r *PostgresRepository) Insert(ctx context.Context, tx dbx.DBTX, key *models.JWTSigningKey) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4)`,
		r.cfg.JWTSigningKeysTable(), keyColumns)
	if _, err := tx.ExecContext(ctx, query, key.KeyID, key.KeyString, key.Algorithm, key.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateKey
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
