// Package sessionkeys implements the PostgreSQL-backed session access-token
// signing key store. Unlike JWT keys these are pruned: old keys expire once
// every access token signed with them has itself expired.
package sessionkeys

import (
	"context"
	"fmt"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// Repository persists session access-token signing keys.
type Repository interface {
	ListForUpdate(ctx context.Context, tx dbx.DBTX) ([]*models.SessionSigningKey, error)
	Insert(ctx context.Context, tx dbx.DBTX, key *models.SessionSigningKey) error
	DeleteCreatedBefore(ctx context.Context, createdBefore int64) error
}

// PostgresRepository implements Repository. Locked reads and inserts run on
// the caller's transaction; pruning stands alone.
type PostgresRepository struct {
	db  dbx.DBTX
	cfg *config.Config
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg}
}

// ListForUpdate returns every key newest-first, locking the rows.
func (r *PostgresRepository) ListForUpdate(ctx context.Context, tx dbx.DBTX) ([]*models.SessionSigningKey, error) {
	query := fmt.Sprintf(`SELECT created_at_time, value FROM %s ORDER BY created_at_time DESC FOR UPDATE`,
		r.cfg.AccessTokenSigningKeysTable())

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SessionSigningKey
	for rows.Next() {
		k := &models.SessionSigningKey{}
		if err := rows.Scan(&k.CreatedAtTime, &k.Value); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert appends a key. The creation time is the primary key, so two
// processes minting in the same millisecond collide and the loser re-reads.
func (r *PostgresRepository) Insert(ctx context.Context, tx dbx.DBTX, key *models.SessionSigningKey) error {
	query := fmt.Sprintf(`INSERT INTO %s (created_at_time, value) VALUES ($1, $2)`,
		r.cfg.AccessTokenSigningKeysTable())
	if _, err := tx.ExecContext(ctx, query, key.CreatedAtTime, key.Value); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateKey
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteCreatedBefore prunes keys older than the given creation time.
func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, createdBefore int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at_time < $1`, r.cfg.AccessTokenSigningKeysTable())
	if _, err := r.db.ExecContext(ctx, query, createdBefore); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
