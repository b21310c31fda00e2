package passwordless

import (
	"context"

	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// Repository persists passwordless users. A user is reachable by email,
// phone number, or both; each contact point is unique when present.
type Repository interface {
	SignUp(ctx context.Context, user *models.PasswordlessUser) error
	DeleteUser(ctx context.Context, userID string) error

	GetByID(ctx context.Context, userID string) (*models.PasswordlessUser, error)
	GetByIDList(ctx context.Context, userIDs []string) ([]*models.PasswordlessUser, error)
	GetByEmail(ctx context.Context, email string) (*models.PasswordlessUser, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.PasswordlessUser, error)

	UpdateUser(ctx context.Context, tx dbx.DBTX, userID string, email, phoneNumber *string) error
}

// DeviceRepository persists active OTP/magic-link device flows. Bound to a
// DBTX: single statements run anywhere, locked reads require a transaction.
type DeviceRepository interface {
	Create(ctx context.Context, device *models.PasswordlessDevice) error
	Get(ctx context.Context, deviceIDHash string) (*models.PasswordlessDevice, error)
	GetForUpdate(ctx context.Context, deviceIDHash string) (*models.PasswordlessDevice, error)
	ListByEmail(ctx context.Context, email string) ([]*models.PasswordlessDevice, error)
	ListByPhoneNumber(ctx context.Context, phoneNumber string) ([]*models.PasswordlessDevice, error)
	IncrementFailedAttempts(ctx context.Context, deviceIDHash string) error
	Delete(ctx context.Context, deviceIDHash string) error
}

// CodeRepository persists the codes of active devices. Codes disappear with
// their device through the foreign key cascade.
type CodeRepository interface {
	Create(ctx context.Context, code *models.PasswordlessCode) error
	Get(ctx context.Context, codeID string) (*models.PasswordlessCode, error)
	GetByLinkCodeHash(ctx context.Context, linkCodeHash string) (*models.PasswordlessCode, error)
	ListByDevice(ctx context.Context, deviceIDHash string) ([]*models.PasswordlessCode, error)
	ListByDeviceForUpdate(ctx context.Context, deviceIDHash string) ([]*models.PasswordlessCode, error)
	DeleteCreatedBefore(ctx context.Context, createdBefore int64) error
}
