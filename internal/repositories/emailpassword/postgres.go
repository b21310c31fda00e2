// Package emailpassword provides the PostgreSQL-backed store for the
// emailpassword recipe: the users table plus its pairing with the central
// registry.
package emailpassword

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// PostgresRepository implements Repository. It holds the pool because SignUp
// and DeleteUser own their transaction; everything else runs either on the
// pool or on a transaction the caller passes in.
type PostgresRepository struct {
	db  *sql.DB
	cfg *config.Config
}

// NewPostgresRepository constructs a repository over the given pool.
func NewPostgresRepository(db *sql.DB, cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg}
}

// signUpError maps a unique violation during sign-up to the identity it
// protects: the email column or the user id itself.
func signUpError(err error) error {
	if !dbx.IsUniqueViolation(err) {
		return fmt.Errorf("db error: %w", err)
	}
	if strings.HasSuffix(dbx.ConstraintName(err), "email_key") {
		return common.ErrDuplicateEmail
	}
	return common.ErrUserAlreadyExists
}

// SignUp inserts the registry row and the emailpassword row in one
// transaction. A duplicate user id or email rolls back both inserts and
// surfaces the matching sentinel error.
func (r *PostgresRepository) SignUp(ctx context.Context, user *models.EmailPasswordUser) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := fmt.Sprintf(`INSERT INTO %s (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`,
			r.cfg.UsersTable())
		if _, err := tx.ExecContext(ctx, query, user.ID, string(models.RecipeEmailPassword), user.TimeJoined); err != nil {
			return signUpError(err)
		}

		query = fmt.Sprintf(`INSERT INTO %s (user_id, email, password_hash, time_joined) VALUES ($1, $2, $3, $4)`,
			r.cfg.EmailPasswordUsersTable())
		if _, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.TimeJoined); err != nil {
			return signUpError(err)
		}
		return nil
	})
}

// DeleteUser removes the registry row and the emailpassword row in one
// transaction. Reset tokens cascade with the user row. Deleting an unknown
// user is a no-op.
func (r *PostgresRepository) DeleteUser(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND recipe_id = $2`, r.cfg.UsersTable())
		if _, err := tx.ExecContext(ctx, query, userID, string(models.RecipeEmailPassword)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		query = fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.cfg.EmailPasswordUsersTable())
		if _, err := tx.ExecContext(ctx, query, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

const userColumns = "user_id, email, password_hash, time_joined"

func scanUser(row interface{ Scan(...any) error }) (*models.EmailPasswordUser, error) {
	u := &models.EmailPasswordUser{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TimeJoined); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, db dbx.DBTX, query string, arg any) (*models.EmailPasswordUser, error) {
	u, err := scanUser(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// GetByID returns the user with the given id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, userID string) (*models.EmailPasswordUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, userColumns, r.cfg.EmailPasswordUsersTable())
	return r.getOne(ctx, r.db, query, userID)
}

// GetByEmail returns the user owning the given email, or common.ErrorNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.EmailPasswordUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, r.cfg.EmailPasswordUsersTable())
	return r.getOne(ctx, r.db, query, email)
}

// GetByIDList bulk-fetches users for the registry's hydration step. An empty
// id list returns an empty result without touching the database.
func (r *PostgresRepository) GetByIDList(ctx context.Context, userIDs []string) ([]*models.EmailPasswordUser, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id IN (%s)`,
		userColumns, r.cfg.EmailPasswordUsersTable(), strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.EmailPasswordUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadByIDList adapts GetByIDList to the registry's hydration contract.
func (r *PostgresRepository) LoadByIDList(ctx context.Context, userIDs []string) ([]models.AuthRecipeUser, error) {
	users, err := r.GetByIDList(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	result := make([]models.AuthRecipeUser, 0, len(users))
	for _, u := range users {
		result = append(result, models.AuthRecipeUser{
			ID:            u.ID,
			RecipeID:      models.RecipeEmailPassword,
			TimeJoined:    u.TimeJoined,
			EmailPassword: u,
		})
	}
	return result, nil
}

// GetByIDForUpdate is GetByID under a row-level write lock, for use inside a
// caller transaction that is about to mutate the row.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, tx dbx.DBTX, userID string) (*models.EmailPasswordUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 FOR UPDATE`,
		userColumns, r.cfg.EmailPasswordUsersTable())
	return r.getOne(ctx, tx, query, userID)
}

// UpdatePassword replaces the stored password hash in place, on the caller's
// transaction.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, tx dbx.DBTX, userID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $1 WHERE user_id = $2`, r.cfg.EmailPasswordUsersTable())
	if _, err := tx.ExecContext(ctx, query, passwordHash, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateEmail replaces the stored email in place, on the caller's
// transaction. A conflicting email surfaces as common.ErrDuplicateEmail.
func (r *PostgresRepository) UpdateEmail(ctx context.Context, tx dbx.DBTX, userID, email string) error {
	query := fmt.Sprintf(`UPDATE %s SET email = $1 WHERE user_id = $2`, r.cfg.EmailPasswordUsersTable())
	if _, err := tx.ExecContext(ctx, query, email, userID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
