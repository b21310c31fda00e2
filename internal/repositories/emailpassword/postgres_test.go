package emailpassword

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

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return NewPostgresRepository(db, cfg), mock, db
}

func q(s string) string {
	return "^" + regexp.QuoteMeta(s) + "$"
}

var alice = &models.EmailPasswordUser{
	ID:           "6c6f11c1-9e3c-4e44-a1cd-fc8b6bf5b3a1",
	Email:        "alice@example.com",
	PasswordHash: "$2a$10$hash",
	TimeJoined:   1700000000000,
}

func TestSignUp_CommitsBothInserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO all_auth_recipe_users (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`)).
		WithArgs(alice.ID, "emailpassword", alice.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO emailpassword_users (user_id, email, password_hash, time_joined) VALUES ($1, $2, $3, $4)`)).
		WithArgs(alice.ID, alice.Email, alice.PasswordHash, alice.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SignUp(context.Background(), alice); err != nil {
		t.Fatalf("SignUp error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSignUp_DuplicateEmailRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO all_auth_recipe_users (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`)).
		WithArgs(alice.ID, "emailpassword", alice.TimeJoined).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO emailpassword_users (user_id, email, password_hash, time_joined) VALUES ($1, $2, $3, $4)`)).
		WithArgs(alice.ID, alice.Email, alice.PasswordHash, alice.TimeJoined).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "emailpassword_users_email_key"})
	mock.ExpectRollback()

	err := repo.SignUp(context.Background(), alice)
	if !errors.Is(err, common.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSignUp_DuplicateUserIDRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO all_auth_recipe_users (user_id, recipe_id, time_joined) VALUES ($1, $2, $3)`)).
		WithArgs(alice.ID, "emailpassword", alice.TimeJoined).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "all_auth_recipe_users_pkey"})
	mock.ExpectRollback()

	err := repo.SignUp(context.Background(), alice)
	if !errors.Is(err, common.ErrUserAlreadyExists) {
		t.Fatalf("want ErrUserAlreadyExists, got %v", err)
	}
}

func TestDeleteUser_DeletesBothRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`DELETE FROM all_auth_recipe_users WHERE user_id = $1 AND recipe_id = $2`)).
		WithArgs(alice.ID, "emailpassword").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`DELETE FROM emailpassword_users WHERE user_id = $1`)).
		WithArgs(alice.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DeleteUser(context.Background(), alice.ID); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
}

func TestDeleteUser_AbsentUserIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`DELETE FROM all_auth_recipe_users WHERE user_id = $1 AND recipe_id = $2`)).
		WithArgs("ghost", "emailpassword").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(`DELETE FROM emailpassword_users WHERE user_id = $1`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.DeleteUser(context.Background(), "ghost"); err != nil {
		t.Fatalf("DeleteUser should be idempotent, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "email", "password_hash", "time_joined"}).
		AddRow(alice.ID, alice.Email, alice.PasswordHash, alice.TimeJoined)
	mock.ExpectQuery(q(`SELECT user_id, email, password_hash, time_joined FROM emailpassword_users WHERE user_id = $1`)).
		WithArgs(alice.ID).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Email != alice.Email {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(q(`SELECT user_id, email, password_hash, time_joined FROM emailpassword_users WHERE email = $1`)).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByIDList_EmptyInputIssuesNoQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.GetByIDList(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByIDList_BuildsPlaceholderList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "email", "password_hash", "time_joined"}).
		AddRow("u1", "a@x.com", "h1", int64(1)).
		AddRow("u2", "b@x.com", "h2", int64(2))
	mock.ExpectQuery(q(`SELECT user_id, email, password_hash, time_joined FROM emailpassword_users WHERE user_id IN ($1,$2)`)).
		WithArgs("u1", "u2").
		WillReturnRows(rows)

	got, err := repo.GetByIDList(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("GetByIDList error: %v", err)
	}
	if len(got) != 2 || got[1].ID != "u2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestUpdatePassword_RunsOnCallerTx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT user_id, email, password_hash, time_joined FROM emailpassword_users WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(alice.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "password_hash", "time_joined"}).
			AddRow(alice.ID, alice.Email, alice.PasswordHash, alice.TimeJoined))
	mock.ExpectExec(q(`UPDATE emailpassword_users SET password_hash = $1 WHERE user_id = $2`)).
		WithArgs("$2a$10$new", alice.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByIDForUpdate(context.Background(), tx, alice.ID); err != nil {
		t.Fatalf("GetByIDForUpdate error: %v", err)
	}
	if err := repo.UpdatePassword(context.Background(), tx, alice.ID, "$2a$10$new"); err != nil {
		t.Fatalf("UpdatePassword error: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateEmail_DuplicateSurfacesTypedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE emailpassword_users SET email = $1 WHERE user_id = $2`)).
		WithArgs("taken@example.com", alice.ID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "emailpassword_users_email_key"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	err = repo.UpdateEmail(context.Background(), tx, alice.ID, "taken@example.com")
	if !errors.Is(err, common.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
}
