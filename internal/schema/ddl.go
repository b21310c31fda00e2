package schema

import (
	"fmt"

	"github.com/mkuznecovs/authkeeper/internal/config"
)

// tableSpec is one bootstrap unit: a physical table name to probe and the
// statements that bring it (and its indexes) into existence.
type tableSpec struct {
	name string
	ddl  []string
}

// tables returns the bootstrap plan in dependency order: referenced tables
// before the tables holding foreign keys into them.
func tables(c *config.Config) []tableSpec {
	idx := func(name string) string { return c.TablePrefix + name }

	return []tableSpec{
		{
			name: c.KeyValueTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					name VARCHAR(128) NOT NULL,
					value TEXT,
					created_at_time BIGINT,
					PRIMARY KEY (name)
				)`, c.KeyValueTable()),
			},
		},
		{
			name: c.UsersTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					recipe_id VARCHAR(128) NOT NULL,
					time_joined BIGINT NOT NULL,
					PRIMARY KEY (user_id)
				)`, c.UsersTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (time_joined DESC, user_id DESC)`,
					idx("all_auth_recipe_users_pagination_index"), c.UsersTable()),
			},
		},
		{
			name: c.EmailPasswordUsersTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					email VARCHAR(256) NOT NULL UNIQUE,
					password_hash VARCHAR(256) NOT NULL,
					time_joined BIGINT NOT NULL,
					PRIMARY KEY (user_id)
				)`, c.EmailPasswordUsersTable()),
			},
		},
		{
			name: c.PasswordResetTokensTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL REFERENCES %s (user_id) ON DELETE CASCADE,
					token VARCHAR(128) NOT NULL UNIQUE,
					token_expiry BIGINT NOT NULL,
					PRIMARY KEY (user_id, token)
				)`, c.PasswordResetTokensTable(), c.EmailPasswordUsersTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (token_expiry)`,
					idx("emailpassword_password_reset_token_expiry_index"), c.PasswordResetTokensTable()),
			},
		},
		{
			name: c.EmailVerificationTokensTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					email VARCHAR(256) NOT NULL,
					token VARCHAR(128) NOT NULL UNIQUE,
					token_expiry BIGINT NOT NULL,
					PRIMARY KEY (user_id, email, token)
				)`, c.EmailVerificationTokensTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (token_expiry)`,
					idx("emailverification_tokens_index"), c.EmailVerificationTokensTable()),
			},
		},
		{
			name: c.EmailVerificationTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					email VARCHAR(256) NOT NULL,
					PRIMARY KEY (user_id, email)
				)`, c.EmailVerificationTable()),
			},
		},
		{
			name: c.ThirdPartyUsersTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					third_party_id VARCHAR(28) NOT NULL,
					third_party_user_id VARCHAR(128) NOT NULL,
					user_id CHAR(36) NOT NULL UNIQUE,
					email VARCHAR(256) NOT NULL,
					time_joined BIGINT NOT NULL,
					PRIMARY KEY (third_party_id, third_party_user_id)
				)`, c.ThirdPartyUsersTable()),
			},
		},
		{
			name: c.PasswordlessUsersTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					email VARCHAR(256) UNIQUE,
					phone_number VARCHAR(256) UNIQUE,
					time_joined BIGINT NOT NULL,
					PRIMARY KEY (user_id)
				)`, c.PasswordlessUsersTable()),
			},
		},
		{
			name: c.PasswordlessDevicesTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					device_id_hash CHAR(44) NOT NULL,
					email VARCHAR(256),
					phone_number VARCHAR(256),
					link_code_salt CHAR(44) NOT NULL,
					failed_attempts INT NOT NULL,
					PRIMARY KEY (device_id_hash)
				)`, c.PasswordlessDevicesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (email)`,
					idx("passwordless_devices_email_index"), c.PasswordlessDevicesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (phone_number)`,
					idx("passwordless_devices_phone_number_index"), c.PasswordlessDevicesTable()),
			},
		},
		{
			name: c.PasswordlessCodesTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					code_id CHAR(36) NOT NULL,
					device_id_hash CHAR(44) NOT NULL REFERENCES %s (device_id_hash) ON DELETE CASCADE,
					link_code_hash CHAR(44) NOT NULL UNIQUE,
					created_at BIGINT NOT NULL,
					PRIMARY KEY (code_id)
				)`, c.PasswordlessCodesTable(), c.PasswordlessDevicesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at)`,
					idx("passwordless_codes_created_at_index"), c.PasswordlessCodesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (device_id_hash)`,
					idx("passwordless_codes_device_id_hash_index"), c.PasswordlessCodesTable()),
			},
		},
		{
			name: c.JWTSigningKeysTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					key_id VARCHAR(255) NOT NULL,
					key_string TEXT NOT NULL,
					algorithm VARCHAR(10) NOT NULL,
					created_at BIGINT,
					PRIMARY KEY (key_id)
				)`, c.JWTSigningKeysTable()),
			},
		},
		{
			name: c.AccessTokenSigningKeysTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					created_at_time BIGINT NOT NULL,
					value TEXT,
					PRIMARY KEY (created_at_time)
				)`, c.AccessTokenSigningKeysTable()),
			},
		},
		{
			name: c.RolesTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					role VARCHAR(255) NOT NULL,
					PRIMARY KEY (role)
				)`, c.RolesTable()),
			},
		},
		{
			name: c.RolePermissionsTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					role VARCHAR(255) NOT NULL REFERENCES %s (role) ON DELETE CASCADE,
					permission VARCHAR(255) NOT NULL,
					PRIMARY KEY (role, permission)
				)`, c.RolePermissionsTable(), c.RolesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (permission)`,
					idx("role_permissions_permission_index"), c.RolePermissionsTable()),
			},
		},
		{
			name: c.UserRolesTable(),
			ddl: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					user_id CHAR(36) NOT NULL,
					role VARCHAR(255) NOT NULL REFERENCES %s (role) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role)
				)`, c.UserRolesTable(), c.RolesTable()),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (role)`,
					idx("user_roles_role_index"), c.UserRolesTable()),
			},
		},
	}
}
