package config

// table resolves a logical table name to its physical, optionally
// schema-qualified and prefixed, name. No repository hardcodes a physical
// name: every query goes through one of the accessors below.
func (c *Config) table(name string) string {
	n := c.TablePrefix + name
	if c.TableSchema != "" && c.TableSchema != "public" {
		return c.TableSchema + "." + n
	}
	return n
}

func (c *Config) KeyValueTable() string       { return c.table("key_value") }
func (c *Config) UsersTable() string          { return c.table("all_auth_recipe_users") }
func (c *Config) EmailPasswordUsersTable() string {
	return c.table("emailpassword_users")
}
func (c *Config) PasswordResetTokensTable() string {
	return c.table("emailpassword_pswd_reset_tokens")
}
func (c *Config) EmailVerificationTokensTable() string {
	return c.table("emailverification_tokens")
}
func (c *Config) EmailVerificationTable() string {
	return c.table("emailverification_verified_emails")
}
func (c *Config) ThirdPartyUsersTable() string { return c.table("thirdparty_users") }
func (c *Config) PasswordlessUsersTable() string {
	return c.table("passwordless_users")
}
func (c *Config) PasswordlessDevicesTable() string {
	return c.table("passwordless_devices")
}
func (c *Config) PasswordlessCodesTable() string {
	return c.table("passwordless_codes")
}
func (c *Config) JWTSigningKeysTable() string { return c.table("jwt_signing_keys") }
func (c *Config) AccessTokenSigningKeysTable() string {
	return c.table("session_access_token_signing_keys")
}
func (c *Config) RolesTable() string           { return c.table("roles") }
func (c *Config) RolePermissionsTable() string { return c.table("role_permissions") }
func (c *Config) UserRolesTable() string       { return c.table("user_roles") }
