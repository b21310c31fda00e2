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

// PostgresDeviceRepository implements DeviceRepository over dbx.DBTX.
type PostgresDeviceRepository struct {
	db  dbx.DBTX
	cfg *config.Config
}

// NewPostgresDeviceRepository constructs a repository bound to the given DBTX.
func NewPostgresDeviceRepository(db dbx.DBTX, cfg *config.Config) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db, cfg: cfg}
}

const deviceColumns = "device_id_hash, email, phone_number, link_code_salt, failed_attempts"

func scanDevice(row interface{ Scan(...any) error }) (*models.PasswordlessDevice, error) {
	d := &models.PasswordlessDevice{}
	if err := row.Scan(&d.DeviceIDHash, &d.Email, &d.PhoneNumber, &d.LinkCodeSalt, &d.FailedAttempts); err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts a new device flow. Two flows never share a device id hash.
func (r *PostgresDeviceRepository) Create(ctx context.Context, device *models.PasswordlessDevice) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)`,
		r.cfg.PasswordlessDevicesTable(), deviceColumns)
	if _, err := r.db.ExecContext(ctx, query,
		device.DeviceIDHash, device.Email, device.PhoneNumber, device.LinkCodeSalt, device.FailedAttempts); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateKey
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresDeviceRepository) getOne(ctx context.Context, query string, arg any) (*models.PasswordlessDevice, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Get returns the device with the given id hash.
func (r *PostgresDeviceRepository) Get(ctx context.Context, deviceIDHash string) (*models.PasswordlessDevice, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE device_id_hash = $1`,
		deviceColumns, r.cfg.PasswordlessDevicesTable())
	return r.getOne(ctx, query, deviceIDHash)
}

// GetForUpdate is Get under a row-level write lock, used before consuming or
// invalidating the device's codes.
func (r *PostgresDeviceRepository) GetForUpdate(ctx context.Context, deviceIDHash string) (*models.PasswordlessDevice, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE device_id_hash = $1 FOR UPDATE`,
		deviceColumns, r.cfg.PasswordlessDevicesTable())
	return r.getOne(ctx, query, deviceIDHash)
}

func (r *PostgresDeviceRepository) list(ctx context.Context, query string, arg any) ([]*models.PasswordlessDevice, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PasswordlessDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByEmail returns all active devices addressed to an email.
func (r *PostgresDeviceRepository) ListByEmail(ctx context.Context, email string) ([]*models.PasswordlessDevice, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`,
		deviceColumns, r.cfg.PasswordlessDevicesTable())
	return r.list(ctx, query, email)
}

// ListByPhoneNumber returns all active devices addressed to a phone number.
func (r *PostgresDeviceRepository) ListByPhoneNumber(ctx context.Context, phoneNumber string) ([]*models.PasswordlessDevice, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE phone_number = $1`,
		deviceColumns, r.cfg.PasswordlessDevicesTable())
	return r.list(ctx, query, phoneNumber)
}

// IncrementFailedAttempts bumps the device's failed-attempt counter. Run it
// after GetForUpdate in the same transaction so concurrent wrong guesses
// cannot lose a count.
func (r *PostgresDeviceRepository) IncrementFailedAttempts(ctx context.Context, deviceIDHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET failed_attempts = failed_attempts + 1 WHERE device_id_hash = $1`,
		r.cfg.PasswordlessDevicesTable())
	if _, err := r.db.ExecContext(ctx, query, deviceIDHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the device; its codes cascade with it.
func (r *PostgresDeviceRepository) Delete(ctx context.Context, deviceIDHash string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE device_id_hash = $1`, r.cfg.PasswordlessDevicesTable())
	if _, err := r.db.ExecContext(ctx, query, deviceIDHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
