package resettokens

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

var token = &models.PasswordResetToken{
	UserID:      "a1b2c3d4-0000-4000-8000-000000000001",
	Token:       "reset-token-1",
	TokenExpiry: 1700003600000,
}

func TestInsert_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q(`INSERT INTO emailpassword_pswd_reset_tokens (user_id, token, token_expiry) VALUES ($1, $2, $3)`)).
		WithArgs(token.UserID, token.Token, token.TokenExpiry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Insert(context.Background(), token); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
}

func TestInsert_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q(`INSERT INTO emailpassword_pswd_reset_tokens (user_id, token, token_expiry) VALUES ($1, $2, $3)`)).
		WithArgs(token.UserID, token.Token, token.TokenExpiry).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "emailpassword_pswd_reset_tokens_user_id_fkey"})

	if err := repo.Insert(context.Background(), token); !errors.Is(err, common.ErrUnknownUser) {
		t.Fatalf("want ErrUnknownUser, got %v", err)
	}
}

func TestInsert_DuplicateToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q(`INSERT INTO emailpassword_pswd_reset_tokens (user_id, token, token_expiry) VALUES ($1, $2, $3)`)).
		WithArgs(token.UserID, token.Token, token.TokenExpiry).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "emailpassword_pswd_reset_tokens_token_key"})

	if err := repo.Insert(context.Background(), token); !errors.Is(err, common.ErrDuplicateToken) {
		t.Fatalf("want ErrDuplicateToken, got %v", err)
	}
}

func TestGetByToken_ReturnsStaleRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "token", "token_expiry"}).
		AddRow(token.UserID, token.Token, int64(1)) // long expired
	mock.ExpectQuery(q(`SELECT user_id, token, token_expiry FROM emailpassword_pswd_reset_tokens WHERE token = $1`)).
		WithArgs(token.Token).
		WillReturnRows(rows)

	got, err := repo.GetByToken(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("GetByToken error: %v", err)
	}
	if got.TokenExpiry != 1 {
		t.Fatalf("unexpected token: %+v", got)
	}
}

func TestGetByToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(q(`SELECT user_id, token, token_expiry FROM emailpassword_pswd_reset_tokens WHERE token = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByToken(context.Background(), "missing"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestListForUserForUpdate_Locks(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "token", "token_expiry"}).
		AddRow(token.UserID, "t1", int64(10)).
		AddRow(token.UserID, "t2", int64(20))
	mock.ExpectQuery(q(`SELECT user_id, token, token_expiry FROM emailpassword_pswd_reset_tokens WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(token.UserID).
		WillReturnRows(rows)

	got, err := repo.ListForUserForUpdate(context.Background(), token.UserID)
	if err != nil {
		t.Fatalf("ListForUserForUpdate error: %v", err)
	}
	if len(got) != 2 || got[1].Token != "t2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDeleteExpired_KeepsTokenExpiringAtNow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// Strict comparison: the delete must not admit rows with
	// token_expiry equal to now.
	mock.ExpectExec(q(`DELETE FROM emailpassword_pswd_reset_tokens WHERE token_expiry < $1`)).
		WithArgs(int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := repo.DeleteExpired(context.Background(), 1700000000000); err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q(`DELETE FROM emailpassword_pswd_reset_tokens WHERE user_id = $1`)).
		WithArgs(token.UserID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeleteAllForUser(context.Background(), token.UserID); err != nil {
		t.Fatalf("DeleteAllForUser error: %v", err)
	}
}
