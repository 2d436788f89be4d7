package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func TestWithTransactionCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err = WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "DELETE FROM sessions")
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTransaction(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithRetryRetriesSerializationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	attempts := 0
	err = WithRetry(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		attempts++
		_, err := tx.ExecContext(context.Background(), "INSERT INTO users")
		return err
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = WithRetry(context.Background(), db, DefaultTxOptions(), func(tx *sql.Tx) error {
		attempts++
		return &pq.Error{Code: "23505"}
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("Expected unique violation, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{&pq.Error{Code: "40001"}, ErrorClassSerialization},
		{&pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{fmt.Errorf("wrapped: %w", &pq.Error{Code: "55P03"}), ErrorClassTransient},
		{&pq.Error{Code: "23514"}, ErrorClassPermanent},
		{sql.ErrNoRows, ErrorClassPermanent},
		{nil, ErrorClassPermanent},
	}

	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Errorf("ClassifyError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}

	if !IsCheckViolation(&pq.Error{Code: "23514"}) {
		t.Error("Expected check violation")
	}
}
