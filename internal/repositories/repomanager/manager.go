package repomanager

import (
	"context"
	"database/sql"

	"github.com/mkuznecovs/authkeeper/internal/dbx"
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
)

// RepositoryManager vends repository implementations and exposes the schema
// bootstrap hook. Recipe user stores take the pool because they own their
// sign-up and deletion transactions; the single-table stores take a DBTX so
// callers can enlist them in larger transactions.
type RepositoryManager interface {
	EnsureSchema(ctx context.Context, db *sql.DB) error

	KeyValue(db dbx.DBTX) kv.Repository
	Registry(db *sql.DB) registry.Repository
	EmailPassword(db *sql.DB) emailpassword.Repository
	ThirdParty(db *sql.DB) thirdparty.Repository
	Passwordless(db *sql.DB) passwordless.Repository
	PasswordlessDevices(db dbx.DBTX) passwordless.DeviceRepository
	PasswordlessCodes(db dbx.DBTX) passwordless.CodeRepository
	PasswordResetTokens(db dbx.DBTX) resettokens.Repository
	EmailVerification(db dbx.DBTX) emailverification.Repository
	JWTSigningKeys() jwtsigning.Repository
	SessionSigningKeys(db dbx.DBTX) sessionkeys.Repository
	UserRoles(db dbx.DBTX) userroles.Repository
}
