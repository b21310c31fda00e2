// Package passwordless provides the PostgreSQL-backed stores for the
// passwordless recipe: users, active devices, and their codes.
package passwordless

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

// PostgresRepository implements Repository. SignUp and DeleteUser own their
// transaction; the rest runs on the pool or a caller transaction.
type PostgresRepository struct {
	db  *sql.DB
	cfg *config.Config
}

// NewPostgresRepository constructs a repository over the given pool.
func NewPostgresRepository(db *sql.DB, cfg *config.Config) *PostgresRepository {
	return &PostgresRepository{db: db, cfg: cfg}
}

// signUpError maps a unique violation to the contact point it protects, or
// to the user id when neither email nor phone clashed.
func signUpError(err error) error {
	if !dbx.IsUniqueViolation(err) {
		return fmt.Errorf("db error: %w", err)
	}
	cn := dbx.ConstraintName(err)
	switch {
	case strings.HasSuffix(cn, "email_key"):
		return common.ErrDuplicateEmail
	case strings.HasSuffix(cn, "phone_number_key"):
		return common.ErrDuplicatePhoneNumber
	default:
		return common.ErrUserAlreadyExists
	}
}

// SignUp inserts the registry row and the passwordless row in one
// transaction.
func (r *PostgresRepository) SignUp(ctx context.Context, user *models.PasswordlessUser) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := fmt.Sprintf(`INSERT INTO %s (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`,
			r.cfg.UsersTable())
		if _, err := tx.ExecContext(ctx, query, user.ID, string(models.RecipePasswordless), user.TimeJoined); err != nil {
			return signUpError(err)
		}

		query = fmt.Sprintf(`INSERT INTO %s (user_id, email, phone_number, time_joined) VALUES ($1, $2, $3, $4)`,
			r.cfg.PasswordlessUsersTable())
		if _, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.PhoneNumber, user.TimeJoined); err != nil {
			return signUpError(err)
		}
		return nil
	})
}

// DeleteUser removes the registry row and the passwordless row in one
// transaction; absent rows make it a no-op.
func (r *PostgresRepository) DeleteUser(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND recipe_id = $2`, r.cfg.UsersTable())
		if _, err := tx.ExecContext(ctx, query, userID, string(models.RecipePasswordless)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		query = fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.cfg.PasswordlessUsersTable())
		if _, err := tx.ExecContext(ctx, query, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

const userColumns = "user_id, email, phone_number, time_joined"

func scanUser(row interface{ Scan(...any) error }) (*models.PasswordlessUser, error) {
	u := &models.PasswordlessUser{}
	if err := row.Scan(&u.ID, &u.Email, &u.PhoneNumber, &u.TimeJoined); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.PasswordlessUser, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// GetByID returns the user with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, userID string) (*models.PasswordlessUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, userColumns, r.cfg.PasswordlessUsersTable())
	return r.getOne(ctx, query, userID)
}

// GetByEmail returns the user owning the given email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.PasswordlessUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, r.cfg.PasswordlessUsersTable())
	return r.getOne(ctx, query, email)
}

// GetByPhoneNumber returns the user owning the given phone number.
func (r *PostgresRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.PasswordlessUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE phone_number = $1`, userColumns, r.cfg.PasswordlessUsersTable())
	return r.getOne(ctx, query, phoneNumber)
}

// GetByIDList bulk-fetches users for the registry's hydration step. An empty
// id list returns an empty result without touching the database.
func (r *PostgresRepository) GetByIDList(ctx context.Context, userIDs []string) ([]*models.PasswordlessUser, error) {
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
		userColumns, r.cfg.PasswordlessUsersTable(), strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PasswordlessUser
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
			ID:           u.ID,
			RecipeID:     models.RecipePasswordless,
			TimeJoined:   u.TimeJoined,
			Passwordless: u,
		})
	}
	return result, nil
}

// UpdateUser replaces the contact points in place, on the caller's
// transaction. Clashes surface as the matching duplicate error.
func (r *PostgresRepository) UpdateUser(ctx context.Context, tx dbx.DBTX, userID string, email, phoneNumber *string) error {
	query := fmt.Sprintf(`UPDATE %s SET email = $1, phone_number = $2 WHERE user_id = $3`,
		r.cfg.PasswordlessUsersTable())
	if _, err := tx.ExecContext(ctx, query, email, phoneNumber, userID); err != nil {
		if dbx.IsUniqueViolation(err) {
			if strings.HasSuffix(dbx.ConstraintName(err), "phone_number_key") {
				return common.ErrDuplicatePhoneNumber
			}
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
