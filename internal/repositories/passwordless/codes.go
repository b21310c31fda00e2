package passwordless

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

// PostgresCodeRepository implements CodeRepository over dbx.DBTX.
type PostgresCodeRepository struct {
	db  dbx.DBTX
	cfg *config.Config
}

// NewPostgresCodeRepository constructs a repository bound to the given DBTX.
func NewPostgresCodeRepository(db dbx.DBTX, cfg *config.Config) *PostgresCodeRepository {
	return &PostgresCodeRepository{db: db, cfg: cfg}
}

const codeColumns = "code_id, device_id_hash, link_code_hash, created_at"

func scanCode(row interface{ Scan(...any) error }) (*models.PasswordlessCode, error) {
	c := &models.PasswordlessCode{}
	if err := row.Scan(&c.CodeID, &c.DeviceIDHash, &c.LinkCodeHash, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a code for an existing device. A missing device surfaces as
// common.ErrUnknownDevice, a clashing link code hash as
// common.ErrDuplicateToken.
func (r *PostgresCodeRepository) Create(ctx context.Context, code *models.PasswordlessCode) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4)`,
		r.cfg.PasswordlessCodesTable(), codeColumns)
	if _, err := r.db.ExecContext(ctx, query,
		code.CodeID, code.DeviceIDHash, code.LinkCodeHash, code.CreatedAt); err != nil {
		switch {
		case dbx.IsForeignKeyViolation(err):
			return common.ErrUnknownDevice
		case dbx.IsUniqueViolation(err):
			return common.ErrDuplicateToken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresCodeRepository) getOne(ctx context.Context, query string, arg any) (*models.PasswordlessCode, error) {
	c, err := scanCode(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Get returns the code with the given id.
func (r *PostgresCodeRepository) Get(ctx context.Context, codeID string) (*models.PasswordlessCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code_id = $1`, codeColumns, r.cfg.PasswordlessCodesTable())
	return r.getOne(ctx, query, codeID)
}

// GetByLinkCodeHash resolves a magic link to its code.
func (r *PostgresCodeRepository) GetByLinkCodeHash(ctx context.Context, linkCodeHash string) (*models.PasswordlessCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE link_code_hash = $1`, codeColumns, r.cfg.PasswordlessCodesTable())
	return r.getOne(ctx, query, linkCodeHash)
}

func (r *PostgresCodeRepository) list(ctx context.Context, query string, arg any) ([]*models.PasswordlessCode, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PasswordlessCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByDevice returns all codes of a device.
func (r *PostgresCodeRepository) ListByDevice(ctx context.Context, deviceIDHash string) ([]*models.PasswordlessCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE device_id_hash = $1`, codeColumns, r.cfg.PasswordlessCodesTable())
	return r.list(ctx, query, deviceIDHash)
}

// ListByDeviceForUpdate is ListByDevice under a write lock, for consuming a
// code while invalidating its siblings in one transaction.
func (r *PostgresCodeRepository) ListByDeviceForUpdate(ctx context.Context, deviceIDHash string) ([]*models.PasswordlessCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE device_id_hash = $1 FOR UPDATE`,
		codeColumns, r.cfg.PasswordlessCodesTable())
	return r.list(ctx, query, deviceIDHash)
}

// DeleteCreatedBefore sweeps codes older than the given creation time. It
// only touches rows inside its own delete predicate, so it is safe to run
// concurrently with new code creation.
func (r *PostgresCodeRepository) DeleteCreatedBefore(ctx context.Context, createdBefore int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, r.cfg.PasswordlessCodesTable())
	if _, err := r.db.ExecContext(ctx, query, createdBefore); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
