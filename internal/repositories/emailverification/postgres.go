// Package emailverification implements the PostgreSQL-backed email
// verification stores: outstanding verification tokens and the verified-email
// facts they produce. Both are keyed by (user id, email) and independent of
// any single recipe, so no foreign key ties them to a recipe table.
package emailverification

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

// Repository persists verification tokens and verified-email facts.
type Repository interface {
	InsertToken(ctx context.Context, token *models.EmailVerificationToken) error
	GetByToken(ctx context.Context, token string) (*models.EmailVerificationToken, error)
	ListForUserEmail(ctx context.Context, userID, email string) ([]*models.EmailVerificationToken, error)
	ListForUserEmailForUpdate(ctx context.Context, userID, email string) ([]*models.EmailVerificationToken, error)
	DeleteExpiredTokens(ctx context.Context, now int64) error
	DeleteAllForUserEmail(ctx context.Context, userID, email string) error

	MarkVerified(ctx context.Context, userID, email string) error
	IsVerified(ctx context.Context, userID, email string) (bool, error)
	Unverify(ctx context.Context, userID, email string) error
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

const tokenColumns = "user_id, email, token, token_expiry"

func scanToken(row interface{ Scan(...any) error }) (*models.EmailVerificationToken, error) {
	t := &models.EmailVerificationToken{}
	if err := row.Scan(&t.UserID, &t.Email, &t.Token, &t.TokenExpiry); err != nil {
		return nil, err
	}
	return t, nil
}

// InsertToken stores a fresh verification token. A clashing token value
// surfaces as common.ErrDuplicateToken.
func (r *PostgresRepository) InsertToken(ctx context.Context, token *models.EmailVerificationToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4)`,
		r.cfg.EmailVerificationTokensTable(), tokenColumns)
	if _, err := r.db.ExecContext(ctx, query, token.UserID, token.Email, token.Token, token.TokenExpiry); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateToken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByToken resolves a token value to its row, expired or not.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.EmailVerificationToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE token = $1`, tokenColumns, r.cfg.EmailVerificationTokensTable())
	t, err := scanToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) list(ctx context.Context, query, userID, email string) ([]*models.EmailVerificationToken, error) {
	rows, err := r.db.QueryContext(ctx, query, userID, email)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.EmailVerificationToken
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

// ListForUserEmail returns every outstanding token for a (user, email) pair.
func (r *PostgresRepository) ListForUserEmail(ctx context.Context, userID, email string) ([]*models.EmailVerificationToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND email = $2`,
		tokenColumns, r.cfg.EmailVerificationTokensTable())
	return r.list(ctx, query, userID, email)
}

// ListForUserEmailForUpdate is ListForUserEmail under a write lock, for
// verifying with one token while invalidating its siblings.
func (r *PostgresRepository) ListForUserEmailForUpdate(ctx context.Context, userID, email string) ([]*models.EmailVerificationToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND email = $2 FOR UPDATE`,
		tokenColumns, r.cfg.EmailVerificationTokensTable())
	return r.list(ctx, query, userID, email)
}

// DeleteExpiredTokens sweeps tokens whose expiry lies strictly before now. A
// token expiring exactly at now is still usable and stays.
func (r *PostgresRepository) DeleteExpiredTokens(ctx context.Context, now int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE token_expiry < $1`, r.cfg.EmailVerificationTokensTable())
	if _, err := r.db.ExecContext(ctx, query, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteAllForUserEmail drops every outstanding token for a (user, email)
// pair, typically right after one of them verified the address.
func (r *PostgresRepository) DeleteAllForUserEmail(ctx context.Context, userID, email string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND email = $2`, r.cfg.EmailVerificationTokensTable())
	if _, err := r.db.ExecContext(ctx, query, userID, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkVerified records the verified-email fact. Verifying an already verified
// address is a no-op rather than an error.
func (r *PostgresRepository) MarkVerified(ctx context.Context, userID, email string) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, email) VALUES ($1, $2)`, r.cfg.EmailVerificationTable())
	if _, err := r.db.ExecContext(ctx, query, userID, email); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// IsVerified reports whether the (user, email) pair has been verified.
func (r *PostgresRepository) IsVerified(ctx context.Context, userID, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE user_id = $1 AND email = $2`, r.cfg.EmailVerificationTable())

	var one int
	err := r.db.QueryRowContext(ctx, query, userID, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// Unverify withdraws the verified-email fact, used when the address changes
// hands.
func (r *PostgresRepository) Unverify(ctx context.Context, userID, email string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND email = $2`, r.cfg.EmailVerificationTable())
	if _, err := r.db.ExecContext(ctx, query, userID, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
