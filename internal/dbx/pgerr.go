package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the storage layer distinguishes. Everything else
// is treated as a transient infrastructure failure and propagated as-is.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeUndefinedTable      = "42P01"
	codeInvalidSchemaName   = "3F000"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a duplicate primary/unique key
// violation. Repositories translate this into their "already exists" error.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// ConstraintName returns the name of the violated constraint, if the driver
// reported one. Used to tell apart multiple unique constraints on one table.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// IsForeignKeyViolation reports whether err is a referential-integrity
// violation, i.e. the operation named a parent row that does not exist.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// IsUndefinedTable reports whether err means the queried relation does not
// exist. The schema bootstrapper uses this as its "table absent" probe result.
func IsUndefinedTable(err error) bool {
	return pgCode(err) == codeUndefinedTable
}

// IsInvalidSchema reports whether err means the target schema namespace does
// not exist yet.
func IsInvalidSchema(err error) bool {
	return pgCode(err) == codeInvalidSchemaName
}
