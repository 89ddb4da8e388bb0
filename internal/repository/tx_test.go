package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTxRetriesDeadlock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE counters").
		WillReturnError(errors.New("Error 1213: Deadlock found when trying to get lock"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE counters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err = runInTx(context.Background(), db, func(tx *sql.Tx) error {
		attempts++
		_, err := tx.ExecContext(context.Background(), "UPDATE counters SET n = n + 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxExhaustedRetriesYieldConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < txMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE counters").
			WillReturnError(errors.New("Error 1205: Lock wait timeout exceeded"))
		mock.ExpectRollback()
	}

	err = runInTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE counters SET n = n + 1")
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxDoesNotRetryBusinessRejects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = runInTx(context.Background(), db, func(tx *sql.Tx) error {
		attempts++
		return ErrCapacityExceeded
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(errors.New("Error 1213: Deadlock found")))
	assert.True(t, isRetryable(errors.New("Error 1205: Lock wait timeout exceeded")))
	assert.False(t, isRetryable(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, isRetryable(nil))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(errors.New("Error 1062: Duplicate entry 'abc' for key 'ticket_id'")))
	assert.False(t, isDuplicateKey(errors.New("Error 1213: Deadlock found")))
	assert.False(t, isDuplicateKey(nil))
}
