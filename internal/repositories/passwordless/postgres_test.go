package passwordless

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mkuznecovs/authkeeper/internal/common"
	"github.com/mkuznecovs/authkeeper/internal/config"
	"github.com/mkuznecovs/authkeeper/internal/models"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *sql.DB, *config.Config) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return mock, db, cfg
}

func q(s string) string {
	return "^" + regexp.QuoteMeta(s) + "$"
}

func strptr(s string) *string { return &s }

var carol = &models.PasswordlessUser{
	ID:         "c3d8e1a0-52b3-4e1a-9c48-31c1d94df3ea",
	Email:      strptr("carol@example.com"),
	TimeJoined: 1700000000000,
}

func TestSignUp_CommitsBothInserts(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresRepository(db, cfg)

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO all_auth_recipe_users (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`)).
		WithArgs(carol.ID, "passwordless", carol.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO passwordless_users (user_id, email, phone_number, time_joined) VALUES ($1, $2, $3, $4)`)).
		WithArgs(carol.ID, carol.Email, nil, carol.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SignUp(context.Background(), carol); err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSignUp_DuplicatePhoneNumberRollsBack(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresRepository(db, cfg)

	user := &models.PasswordlessUser{
		ID:          "0f2a7c11-6a55-4a61-97c8-57f1f3b1a0de",
		PhoneNumber: strptr("+4915155501234"),
		TimeJoined:  1700000000001,
	}

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO all_auth_recipe_users (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`)).
		WithArgs(user.ID, "passwordless", user.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO passwordless_users (user_id, email, phone_number, time_joined) VALUES ($1, $2, $3, $4)`)).
		WithArgs(user.ID, nil, user.PhoneNumber, user.TimeJoined).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "passwordless_users_phone_number_key"})
	mock.ExpectRollback()

	err := repo.SignUp(context.Background(), user)
	if !errors.Is(err, common.ErrDuplicatePhoneNumber) {
		t.Fatalf("want ErrDuplicatePhoneNumber, got %v", err)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresRepository(db, cfg)

	mock.ExpectQuery(q(`SELECT user_id, email, phone_number, time_joined FROM passwordless_users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpdateUser_PhoneClashOnCallerTx(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresRepository(db, cfg)

	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE passwordless_users SET email = $1, phone_number = $2 WHERE user_id = $3`)).
		WithArgs(nil, strptr("+4915155501234"), carol.ID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "passwordless_users_phone_number_key"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	err = repo.UpdateUser(context.Background(), tx, carol.ID, nil, strptr("+4915155501234"))
	if !errors.Is(err, common.ErrDuplicatePhoneNumber) {
		t.Fatalf("want ErrDuplicatePhoneNumber, got %v", err)
	}
	_ = tx.Rollback()
}

func TestDeviceCreate_Inserts(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresDeviceRepository(db, cfg)

	device := &models.PasswordlessDevice{
		DeviceIDHash: "dev-hash-1",
		Email:        strptr("carol@example.com"),
		LinkCodeSalt: "salt-1",
	}

	mock.ExpectExec(q(`INSERT INTO passwordless_devices (device_id_hash, email, phone_number, link_code_salt, failed_attempts) VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs("dev-hash-1", device.Email, nil, "salt-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), device); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestDeviceGetForUpdate_Locks(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresDeviceRepository(db, cfg)

	rows := sqlmock.NewRows([]string{"device_id_hash", "email", "phone_number", "link_code_salt", "failed_attempts"}).
		AddRow("dev-hash-1", "carol@example.com", nil, "salt-1", 2)
	mock.ExpectQuery(q(`SELECT device_id_hash, email, phone_number, link_code_salt, failed_attempts FROM passwordless_devices WHERE device_id_hash = $1 FOR UPDATE`)).
		WithArgs("dev-hash-1").
		WillReturnRows(rows)

	got, err := repo.GetForUpdate(context.Background(), "dev-hash-1")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.FailedAttempts != 2 {
		t.Fatalf("unexpected device: %+v", got)
	}
}

func TestDeviceIncrementFailedAttempts(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresDeviceRepository(db, cfg)

	mock.ExpectExec(q(`UPDATE passwordless_devices SET failed_attempts = failed_attempts + 1 WHERE device_id_hash = $1`)).
		WithArgs("dev-hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementFailedAttempts(context.Background(), "dev-hash-1"); err != nil {
		t.Fatalf("IncrementFailedAttempts error: %v", err)
	}
}

func TestCodeCreate_UnknownDevice(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresCodeRepository(db, cfg)

	code := &models.PasswordlessCode{
		CodeID:       "code-1",
		DeviceIDHash: "missing-device",
		LinkCodeHash: "link-hash-1",
		CreatedAt:    1700000000000,
	}

	mock.ExpectExec(q(`INSERT INTO passwordless_codes (code_id, device_id_hash, link_code_hash, created_at) VALUES ($1, $2, $3, $4)`)).
		WithArgs("code-1", "missing-device", "link-hash-1", code.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "passwordless_codes_device_id_hash_fkey"})

	err := repo.Create(context.Background(), code)
	if !errors.Is(err, common.ErrUnknownDevice) {
		t.Fatalf("want ErrUnknownDevice, got %v", err)
	}
}

func TestCodeCreate_DuplicateLinkCode(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresCodeRepository(db, cfg)

	code := &models.PasswordlessCode{
		CodeID:       "code-2",
		DeviceIDHash: "dev-hash-1",
		LinkCodeHash: "link-hash-1",
		CreatedAt:    1700000000000,
	}

	mock.ExpectExec(q(`INSERT INTO passwordless_codes (code_id, device_id_hash, link_code_hash, created_at) VALUES ($1, $2, $3, $4)`)).
		WithArgs("code-2", "dev-hash-1", "link-hash-1", code.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "passwordless_codes_link_code_hash_key"})

	err := repo.Create(context.Background(), code)
	if !errors.Is(err, common.ErrDuplicateToken) {
		t.Fatalf("want ErrDuplicateToken, got %v", err)
	}
}

func TestCodeListByDeviceForUpdate(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresCodeRepository(db, cfg)

	rows := sqlmock.NewRows([]string{"code_id", "device_id_hash", "link_code_hash", "created_at"}).
		AddRow("code-1", "dev-hash-1", "link-1", int64(1)).
		AddRow("code-2", "dev-hash-1", "link-2", int64(2))
	mock.ExpectQuery(q(`SELECT code_id, device_id_hash, link_code_hash, created_at FROM passwordless_codes WHERE device_id_hash = $1 FOR UPDATE`)).
		WithArgs("dev-hash-1").
		WillReturnRows(rows)

	got, err := repo.ListByDeviceForUpdate(context.Background(), "dev-hash-1")
	if err != nil {
		t.Fatalf("ListByDeviceForUpdate error: %v", err)
	}
	if len(got) != 2 || got[1].CodeID != "code-2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCodeDeleteCreatedBefore(t *testing.T) {
	mock, db, cfg := newMock(t)
	defer db.Close()
	repo := NewPostgresCodeRepository(db, cfg)

	mock.ExpectExec(q(`DELETE FROM passwordless_codes WHERE created_at < $1`)).
		WithArgs(int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteCreatedBefore(context.Background(), 1700000000000); err != nil {
		t.Fatalf("DeleteCreatedBefore error: %v", err)
	}
}
