// Package schema bootstraps the database: it probes for each table with a
// cheap SELECT and creates the missing ones, bringing an empty database (or
// an empty schema namespace) to the full layout on first start.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/logging"
)

// Bootstrapper creates missing tables and, when configured with a dedicated
// namespace, the schema itself.
type Bootstrapper struct {
	db  dbx.DBTX
	cfg *config.Config
	log logging.Logger
}

// NewBootstrapper constructs a Bootstrapper over the given DBTX.
func NewBootstrapper(db dbx.DBTX, cfg *config.Config, log logging.Logger) *Bootstrapper {
	return &Bootstrapper{db: db, cfg: cfg, log: log}
}

// EnsureTables brings the database to the full table layout. When the target
// schema namespace does not exist yet it is created and the whole sequence
// retried once; any other failure propagates.
func (b *Bootstrapper) EnsureTables(ctx context.Context) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := b.ensureTables(ctx)
		if err == nil {
			return nil
		}
		if dbx.IsInvalidSchema(err) && b.cfg.TableSchema != "" && b.cfg.TableSchema != "public" {
			b.log.Info(ctx, "schema namespace missing, creating it", "schema", b.cfg.TableSchema)
			if cerr := b.createSchema(ctx); cerr != nil {
				return cerr
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (b *Bootstrapper) createSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, b.cfg.TableSchema)
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (b *Bootstrapper) ensureTables(ctx context.Context) error {
	created := 0
	for _, t := range tables(b.cfg) {
		exists, err := b.tableExists(ctx, t.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		for _, stmt := range t.ddl {
			if _, err := b.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		created++
		b.log.Debug(ctx, "created table", "table", t.name)
	}
	if created > 0 {
		b.log.Info(ctx, "schema bootstrap done", "created", created)
	}
	return nil
}

// tableExists probes a table with the cheapest possible read. An undefined
// relation means absent; a missing schema namespace propagates so
// EnsureTables can create it.
func (b *Bootstrapper) tableExists(ctx context.Context, name string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, name)

	var one int
	err := b.db.QueryRowContext(ctx, query).Scan(&one)
	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return true, nil
	case dbx.IsUndefinedTable(err):
		return false, nil
	}
	return false, err
}
