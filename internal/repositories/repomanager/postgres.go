// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and the schema bootstrapper.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/logging"
	"github.com/mkuznecovs/authkeeper/internal/models"
	"github.com/mkuznecovs/authkeeper/internal/repositories/emailpassword"
	"github.com/mkuznecovs/authkeeper/internal/repositories/emailverification"
	"github.com/mkuznecovs/authkeeper/internal/repositories/jwtsigning"
	"github.com/mkuznecovs/authkeeper/internal/repositories/kv"
	"github.com/mkuznecovs/authkeeper/internal/repositories/passwordless"
	"github.com/mkuznecovs/authkeeper/internal/repositories/registry"
	"github.com/mkuznecovs/authkeeper/internal/repositories/resettokens"
	"github.com/mkuznecovs/authkeeper/internal/repositories/sessionkeys"
	"github.com/mkuznecovs/authkeeper/internal/repositories/thirdparty"
	"github.com/mkuznecovs/authkeeper/internal/repositories/userroles"
	"github.com/mkuznecovs/authkeeper/internal/schema"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations for one table layout.
type PostgresRepositoryManager struct {
	cfg *config.Config
	log logging.Logger
}

// NewPostgresRepositoryManager constructs a manager for the given
// configuration.
func NewPostgresRepositoryManager(cfg *config.Config, log logging.Logger) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{cfg: cfg, log: log}
}

// EnsureSchema creates the schema namespace and any missing tables.
func (m *PostgresRepositoryManager) EnsureSchema(ctx context.Context, db *sql.DB) error {
	return schema.NewBootstrapper(db, m.cfg, m.log).EnsureTables(ctx)
}

// KeyValue returns a kv.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) KeyValue(db dbx.DBTX) kv.Repository {
	return kv.NewPostgresRepository(db, m.cfg)
}

// Registry returns the central user registry with its recipe loaders wired.
func (m *PostgresRepositoryManager) Registry(db *sql.DB) registry.Repository {
	loaders := map[models.RecipeID]registry.UserLoader{
		models.RecipeEmailPassword: emailpassword.NewPostgresRepository(db, m.cfg),
		models.RecipeThirdParty:    thirdparty.NewPostgresRepository(db, m.cfg),
		models.RecipePasswordless:  passwordless.NewPostgresRepository(db, m.cfg),
	}
	return registry.NewPostgresRepository(db, m.cfg, loaders)
}

// EmailPassword returns an emailpassword.Repository over the pool.
func (m *PostgresRepositoryManager) EmailPassword(db *sql.DB) emailpassword.Repository {
	return emailpassword.NewPostgresRepository(db, m.cfg)
}

// ThirdParty returns a thirdparty.Repository over the pool.
func (m *PostgresRepositoryManager) ThirdParty(db *sql.DB) thirdparty.Repository {
	return thirdparty.NewPostgresRepository(db, m.cfg)
}

// Passwordless returns a passwordless.Repository over the pool.
func (m *PostgresRepositoryManager) Passwordless(db *sql.DB) passwordless.Repository {
	return passwordless.NewPostgresRepository(db, m.cfg)
}

// PasswordlessDevices returns a passwordless.DeviceRepository bound to the
// provided DBTX.
func (m *PostgresRepositoryManager) PasswordlessDevices(db dbx.DBTX) passwordless.DeviceRepository {
	return passwordless.NewPostgresDeviceRepository(db, m.cfg)
}

// PasswordlessCodes returns a passwordless.CodeRepository bound to the
// provided DBTX.
func (m *PostgresRepositoryManager) PasswordlessCodes(db dbx.DBTX) passwordless.CodeRepository {
	return passwordless.NewPostgresCodeRepository(db, m.cfg)
}

// PasswordResetTokens returns a resettokens.Repository bound to the provided
// DBTX.
func (m *PostgresRepositoryManager) PasswordResetTokens(db dbx.DBTX) resettokens.Repository {
	return resettokens.NewPostgresRepository(db, m.cfg)
}

// EmailVerification returns an emailverification.Repository bound to the
// provided DBTX.
func (m *PostgresRepositoryManager) EmailVerification(db dbx.DBTX) emailverification.Repository {
	return emailverification.NewPostgresRepository(db, m.cfg)
}

// JWTSigningKeys returns a jwtsigning.Repository; every operation takes its
// transaction explicitly.
func (m *PostgresRepositoryManager) JWTSigningKeys() jwtsigning.Repository {
	return jwtsigning.NewPostgresRepository(m.cfg)
}

// SessionSigningKeys returns a sessionkeys.Repository bound to the provided
// DBTX.
func (m *PostgresRepositoryManager) SessionSigningKeys(db dbx.DBTX) sessionkeys.Repository {
	return sessionkeys.NewPostgresRepository(db, m.cfg)
}

// UserRoles returns a userroles.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) UserRoles(db dbx.DBTX) userroles.Repository {
	return userroles.NewPostgresRepository(db, m.cfg)
}
