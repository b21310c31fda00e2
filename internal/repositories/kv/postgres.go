// Package kv provides the PostgreSQL-backed generic key-value store.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db  dbx.DBTX
	cfg *config.Config
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg}
}

// Set emulates an upsert without engine-specific "on conflict" syntax: read
// the current row, then insert or update in place. The existence check is not
// locked, so two concurrent first writers of the same new name race to
// insert; the loser gets common.ErrDuplicateKey and may retry.
func (r *PostgresRepository) Set(ctx context.Context, kv *models.KeyValue) error {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE name = $1`, r.cfg.KeyValueTable())

	var one int
	err := r.db.QueryRowContext(ctx, query, kv.Name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := fmt.Sprintf(`INSERT INTO %s (name, value, created_at_time) VALUES ($1, $2, $3)`,
			r.cfg.KeyValueTable())
		if _, err := r.db.ExecContext(ctx, insert, kv.Name, kv.Value, kv.CreatedAtTime); err != nil {
			if dbx.IsUniqueViolation(err) {
				return common.ErrDuplicateKey
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	}

	update := fmt.Sprintf(`UPDATE %s SET value = $1, created_at_time = $2 WHERE name = $3`,
		r.cfg.KeyValueTable())
	if _, err := r.db.ExecContext(ctx, update, kv.Value, kv.CreatedAtTime, kv.Name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the row for name, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, name string) (*models.KeyValue, error) {
	query := fmt.Sprintf(`SELECT name, value, created_at_time FROM %s WHERE name = $1`,
		r.cfg.KeyValueTable())
	return r.get(ctx, query, name)
}

// GetForUpdate returns the row for name under a row-level write lock, holding
// it until the surrounding transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, name string) (*models.KeyValue, error) {
	query := fmt.Sprintf(`SELECT name, value, created_at_time FROM %s WHERE name = $1 FOR UPDATE`,
		r.cfg.KeyValueTable())
	return r.get(ctx, query, name)
}

func (r *PostgresRepository) get(ctx context.Context, query, name string) (*models.KeyValue, error) {
	kv := &models.KeyValue{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&kv.Name, &kv.Value, &kv.CreatedAtTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return kv, nil
}

// Delete removes the row for name unconditionally.
func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, r.cfg.KeyValueTable())
	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
