package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func ticketStateRows(id, eventID uint64, status model.ReservationStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "status"}).
		AddRow(id, eventID, string(status))
}

func TestCheckInVerifyConsumesTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnRows(ticketStateRows(5, 9, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO check_ins").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(5, "abcd", 9, 2, model.StatusCheckedIn))
	mock.ExpectCommit()

	op := uint64(77)
	res, err := NewCheckInRepo(db).Verify(context.Background(), "abcd", 9, model.CheckInManual, &op, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInVerifyRejectsReplay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnRows(ticketStateRows(5, 9, model.StatusCheckedIn))
	mock.ExpectRollback()

	_, err = NewCheckInRepo(db).Verify(context.Background(), "abcd", 9, model.CheckInQRCode, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	// A replayed scan is a lifecycle violation too.
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInVerifyRejectsWrongEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnRows(ticketStateRows(5, 9, model.StatusConfirmed))
	mock.ExpectRollback()

	_, err = NewCheckInRepo(db).Verify(context.Background(), "abcd", 10, model.CheckInQRCode, nil, nil)
	assert.ErrorIs(t, err, ErrWrongEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInVerifyRejectsUnconfirmedTicket(t *testing.T) {
	for _, status := range []model.ReservationStatus{
		model.StatusPending, model.StatusWaitlisted, model.StatusCancelled,
	} {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
			WillReturnRows(ticketStateRows(5, 9, status))
		mock.ExpectRollback()

		_, err = NewCheckInRepo(db).Verify(context.Background(), "abcd", 9, model.CheckInQRCode, nil, nil)
		assert.ErrorIs(t, err, ErrNotConfirmed, "status %s", status)
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestCheckInVerifyLosesRaceToConcurrentScan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnRows(ticketStateRows(5, 9, model.StatusConfirmed))
	// Conditional write affects zero rows: another scan won.
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = NewCheckInRepo(db).Verify(context.Background(), "abcd", 9, model.CheckInQRCode, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInVerifyUnknownTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewCheckInRepo(db).Verify(context.Background(), "nope", 9, model.CheckInQRCode, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInVerifyDuplicateAuditRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id, status FROM reservations").
		WillReturnRows(ticketStateRows(5, 9, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO check_ins").
		WillReturnError(sqlErrDuplicate())
	mock.ExpectRollback()

	_, err = NewCheckInRepo(db).Verify(context.Background(), "abcd", 9, model.CheckInQRCode, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}
