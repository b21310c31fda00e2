// Package resettokens implements the PostgreSQL-backed password reset token
// store for the emailpassword recipe.
package resettokens

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

// Repository persists password reset tokens. Tokens reference an existing
// emailpassword user and disappear with it through the foreign key cascade.
type Repository interface {
	Insert(ctx context.Context, token *models.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	ListForUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error)
	ListForUserForUpdate(ctx context.Context, userID string) ([]*models.PasswordResetToken, error)
	DeleteExpired(ctx context.Context, now int64) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db  dbx.DBTX
	cfg *config.Config
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg}
}

const tokenColumns = "user_id, token, token_expiry"

func scanToken(row interface{ Scan(...any) error }) (*models.PasswordResetToken, error) {
	t := &models.PasswordResetToken{}
	if err := row.Scan(&t.UserID, &t.Token, &t.TokenExpiry); err != nil {
		return nil, err
	}
	return t, nil
}

// Insert stores a fresh token. A vanished user surfaces as
// common.ErrUnknownUser, a clashing token value as common.ErrDuplicateToken.
func (r *PostgresRepository) Insert(ctx context.Context, token *models.PasswordResetToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3)`,
		r.cfg.PasswordResetTokensTable(), tokenColumns)
	if _, err := r.db.ExecContext(ctx, query, token.UserID, token.Token, token.TokenExpiry); err != nil {
		switch {
		case dbx.IsForeignKeyViolation(err):
			return common.ErrUnknownUser
		case dbx.IsUniqueViolation(err):
			return common.ErrDuplicateToken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByToken resolves a token value to its row. Expiry is the caller's
// concern; the row is returned even when stale.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE token = $1`, tokenColumns, r.cfg.PasswordResetTokensTable())
	t, err := scanToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.PasswordResetToken, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PasswordResetToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListForUser returns every token of a user.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, tokenColumns, r.cfg.PasswordResetTokensTable())
	return r.list(ctx, query, userID)
}

// ListForUserForUpdate is ListForUser under a write lock, for consuming one
// token while invalidating the user's others in the same transaction.
func (r *PostgresRepository) ListForUserForUpdate(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 FOR UPDATE`,
		tokenColumns, r.cfg.PasswordResetTokensTable())
	return r.list(ctx, query, userID)
}

// DeleteExpired sweeps tokens whose expiry lies strictly before now. A token
// expiring exactly at now is still usable and stays.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE token_expiry < $1`, r.cfg.PasswordResetTokensTable())
	if _, err := r.db.ExecContext(ctx, query, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteAllForUser invalidates every outstanding token of a user, typically
// right after a successful password change.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.cfg.PasswordResetTokensTable())
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
