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

func cancelStateRows(id, eventID, holderID, organizerID uint64, status model.ReservationStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "holder_id", "organizer_id", "status"}).
		AddRow(id, eventID, holderID, organizerID, string(status))
}

func TestCancelPromotesWaitlistHead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Promotion inside the same transaction that freed the slot.
	mock.ExpectQuery("SELECT is_paid FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"is_paid"}).AddRow(false))
	mock.ExpectQuery("FROM waitlist WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id"}).AddRow(31, 12))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM waitlist WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(12, "ffff", 9, 3, model.StatusConfirmed))
	mock.ExpectCommit()

	promoted, err := NewReservationRepo(db).Cancel(context.Background(), "abcd", 2, false)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, model.StatusConfirmed, promoted.Status)
	assert.Equal(t, "ffff", promoted.TicketID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelSkipsStaleWaitlistEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT is_paid FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"is_paid"}).AddRow(false))
	// Head entry points at a reservation that already left WAITLISTED:
	// the conditional write affects zero rows and the entry is dropped.
	mock.ExpectQuery("FROM waitlist WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id"}).AddRow(31, 12))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM waitlist WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The next FIFO entry is promoted instead.
	mock.ExpectQuery("FROM waitlist WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id"}).AddRow(32, 13))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM waitlist WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(13, "eeee", 9, 4, model.StatusConfirmed))
	mock.ExpectCommit()

	promoted, err := NewReservationRepo(db).Cancel(context.Background(), "abcd", 2, false)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "eeee", promoted.TicketID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelEmptyWaitlist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT is_paid FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"is_paid"}).AddRow(false))
	mock.ExpectQuery("FROM waitlist WHERE event_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	promoted, err := NewReservationRepo(db).Cancel(context.Background(), "abcd", 2, false)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForbiddenForOtherHolder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Cancel(context.Background(), "abcd", 777, false)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrganizerOverridesForOwnEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT is_paid FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"is_paid"}).AddRow(false))
	mock.ExpectQuery("FROM waitlist WHERE event_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	// Requester 50 is not the holder but organizes event 9.
	_, err = NewReservationRepo(db).Cancel(context.Background(), "abcd", 50, true)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForbiddenForForeignOrganizer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The admin flag must not reach across events: an organizer who
	// does not organize this ticket's event is just another user.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusConfirmed))
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Cancel(context.Background(), "abcd", 777, true)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRejectsCheckedInTicket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusCheckedIn))
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Cancel(context.Background(), "abcd", 2, false)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelWaitlistedDropsQueueEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations r JOIN events e").
		WillReturnRows(cancelStateRows(5, 9, 2, 50, model.StatusWaitlisted))
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// A parked reservation held no slot, so nobody gets promoted.
	mock.ExpectExec("DELETE FROM waitlist WHERE reservation_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	promoted, err := NewReservationRepo(db).Cancel(context.Background(), "abcd", 2, false)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
