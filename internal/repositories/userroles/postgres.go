// Package userroles implements the PostgreSQL-backed role and permission
// store: role definitions, the permissions each role grants, and the
// user-to-role assignments.
package userroles

import (
	"context"
	"fmt"

	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
)

// Repository persists roles, their permissions, and user assignments. Roles
// must exist before they can be assigned or granted permissions; deleting a
// role cascades to both.
type Repository interface {
	CreateRole(ctx context.Context, role string) error
	DeleteRole(ctx context.Context, role string) (bool, error)
	ListRoles(ctx context.Context) ([]string, error)
	RoleExists(ctx context.Context, role string) (bool, error)

	AddPermissions(ctx context.Context, role string, permissions []string) error
	RemovePermission(ctx context.Context, role, permission string) error
	ListPermissions(ctx context.Context, role string) ([]string, error)
	ListRolesWithPermission(ctx context.Context, permission string) ([]string, error)

	Assign(ctx context.Context, userID, role string) error
	Unassign(ctx context.Context, userID, role string) (bool, error)
	ListRolesForUser(ctx context.Context, userID string) ([]string, error)
	ListUsersForRole(ctx context.Context, role string) ([]string, error)
	UnassignAllForUser(ctx context.Context, userID string) error
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

// CreateRole defines a role. Recreating an existing role surfaces as
// common.ErrDuplicateRole.
func (r *PostgresRepository) CreateRole(ctx context.Context, role string) error {
	query := fmt.Sprintf(`INSERT INTO %s (role) VALUES ($1)`, r.cfg.RolesTable())
	if _, err := r.db.ExecContext(ctx, query, role); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateRole
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteRole removes a role; its permissions and assignments cascade with
// it. Reports whether a role was actually deleted.
func (r *PostgresRepository) DeleteRole(ctx context.Context, role string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE role = $1`, r.cfg.RolesTable())
	res, err := r.db.ExecContext(ctx, query, role)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}

func (r *PostgresRepository) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListRoles returns every defined role.
func (r *PostgresRepository) ListRoles(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT role FROM %s`, r.cfg.RolesTable())
	return r.listStrings(ctx, query)
}

// RoleExists reports whether a role is defined.
func (r *PostgresRepository) RoleExists(ctx context.Context, role string) (bool, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE role = $1`, r.cfg.RolesTable())

	var count int
	if err := r.db.QueryRowContext(ctx, query, role).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

// AddPermissions grants permissions to a role, ignoring ones it already
// holds. An undefined role surfaces as common.ErrUnknownRole.
func (r *PostgresRepository) AddPermissions(ctx context.Context, role string, permissions []string) error {
	query := fmt.Sprintf(`INSERT INTO %s (role, permission) VALUES ($1, $2)`, r.cfg.RolePermissionsTable())
	for _, p := range permissions {
		if _, err := r.db.ExecContext(ctx, query, role, p); err != nil {
			switch {
			case dbx.IsUniqueViolation(err):
				continue
			case dbx.IsForeignKeyViolation(err):
				return common.ErrUnknownRole
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// RemovePermission withdraws one permission from a role; absent grants make
// it a no-op.
func (r *PostgresRepository) RemovePermission(ctx context.Context, role, permission string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE role = $1 AND permission = $2`, r.cfg.RolePermissionsTable())
	if _, err := r.db.ExecContext(ctx, query, role, permission); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListPermissions returns every permission a role grants.
func (r *PostgresRepository) ListPermissions(ctx context.Context, role string) ([]string, error) {
	query := fmt.Sprintf(`SELECT permission FROM %s WHERE role = $1`, r.cfg.RolePermissionsTable())
	return r.listStrings(ctx, query, role)
}

// ListRolesWithPermission returns every role granting a permission.
func (r *PostgresRepository) ListRolesWithPermission(ctx context.Context, permission string) ([]string, error) {
	query := fmt.Sprintf(`SELECT role FROM %s WHERE permission = $1`, r.cfg.RolePermissionsTable())
	return r.listStrings(ctx, query, permission)
}

// Assign gives a user a role. Re-assigning is a no-op; an undefined role
// surfaces as common.ErrUnknownRole.
func (r *PostgresRepository) Assign(ctx context.Context, userID, role string) error {
	query := fmt.Sprintf(`INSERT INTO %s (user_id, role) VALUES ($1, $2)`, r.cfg.UserRolesTable())
	if _, err := r.db.ExecContext(ctx, query, userID, role); err != nil {
		switch {
		case dbx.IsUniqueViolation(err):
			return nil
		case dbx.IsForeignKeyViolation(err):
			return common.ErrUnknownRole
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Unassign takes a role away from a user, reporting whether the user had it.
func (r *PostgresRepository) Unassign(ctx context.Context, userID, role string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND role = $2`, r.cfg.UserRolesTable())
	res, err := r.db.ExecContext(ctx, query, userID, role)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}

// ListRolesForUser returns every role assigned to a user.
func (r *PostgresRepository) ListRolesForUser(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT role FROM %s WHERE user_id = $1`, r.cfg.UserRolesTable())
	return r.listStrings(ctx, query, userID)
}

// ListUsersForRole returns every user holding a role.
func (r *PostgresRepository) ListUsersForRole(ctx context.Context, role string) ([]string, error) {
	query := fmt.Sprintf(`SELECT user_id FROM %s WHERE role = $1`, r.cfg.UserRolesTable())
	return r.listStrings(ctx, query, role)
}

// UnassignAllForUser drops every assignment of a user, part of account
// deletion.
func (r *PostgresRepository) UnassignAllForUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.cfg.UserRolesTable())
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
