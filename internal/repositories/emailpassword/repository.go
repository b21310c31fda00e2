package emailpassword

import (
	"context"

	"github.com/mkuznecovs/authkeeper/internal/dbx"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

// Repository persists emailpassword users. Sign-up and deletion pair the
// recipe row with the central registry row inside one transaction; password
// and email mutations run on a caller-supplied transaction because they are
// always part of a larger operation (e.g. consuming a reset token).
type Repository interface {
	SignUp(ctx context.Context, user *models.EmailPasswordUser) error
	DeleteUser(ctx context.Context, userID string) error

	GetByID(ctx context.Context, userID string) (*models.EmailPasswordUser, error)
	GetByIDList(ctx context.Context, userIDs []string) ([]*models.EmailPasswordUser, error)
	GetByEmail(ctx context.Context, email string) (*models.EmailPasswordUser, error)

	GetByIDForUpdate(ctx context.Context, tx dbx.DBTX, userID string) (*models.EmailPasswordUser, error)
	UpdatePassword(ctx context.Context, tx dbx.DBTX, userID, passwordHash string) error
	UpdateEmail(ctx context.Context, tx dbx.DBTX, userID, email string) error
}
