package kv

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

func TestSet_InsertsWhenAbsent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(q(`SELECT 1 FROM key_value WHERE name = $1`)).
		WithArgs("feature_flag").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(q(`INSERT INTO key_value (name, value, created_at_time) VALUES ($1, $2, $3)`)).
		WithArgs("feature_flag", "on", int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Set(context.Background(), &models.KeyValue{Name: "feature_flag", Value: "on", CreatedAtTime: 1000})
	if err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSet_UpdatesWhenPresent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(q(`SELECT 1 FROM key_value WHERE name = $1`)).
		WithArgs("feature_flag").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(q(`UPDATE key_value SET value = $1, created_at_time = $2 WHERE name = $3`)).
		WithArgs("off", int64(2000), "feature_flag").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Set(context.Background(), &models.KeyValue{Name: "feature_flag", Value: "off", CreatedAtTime: 2000})
	if err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSet_FirstWriterRaceSurfacesDuplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// Another writer inserted between our existence check and our insert.
	mock.ExpectQuery(q(`SELECT 1 FROM key_value WHERE name = $1`)).
		WithArgs("feature_flag").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(q(`INSERT INTO key_value (name, value, created_at_time) VALUES ($1, $2, $3)`)).
		WithArgs("feature_flag", "on", int64(1000)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "key_value_pkey"})

	err := repo.Set(context.Background(), &models.KeyValue{Name: "feature_flag", Value: "on", CreatedAtTime: 1000})
	if !errors.Is(err, common.ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "value", "created_at_time"}).
		AddRow("feature_flag", "on", int64(1000))
	mock.ExpectQuery(q(`SELECT name, value, created_at_time FROM key_value WHERE name = $1`)).
		WithArgs("feature_flag").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "feature_flag")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Value != "on" || got.CreatedAtTime != 1000 {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(q(`SELECT name, value, created_at_time FROM key_value WHERE name = $1`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "value", "created_at_time"}).
		AddRow("refresh_token_key", "k1", int64(500))
	mock.ExpectQuery(q(`SELECT name, value, created_at_time FROM key_value WHERE name = $1 FOR UPDATE`)).
		WithArgs("refresh_token_key").
		WillReturnRows(rows)

	got, err := repo.GetForUpdate(context.Background(), "refresh_token_key")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.Value != "k1" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestDelete_NoopWhenAbsent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(q(`DELETE FROM key_value WHERE name = $1`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "ghost"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}
