package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func reservationRows(id uint64, ticketID string, eventID, holderID uint64, status model.ReservationStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "ticket_id", "event_id", "holder_id", "holder_name", "holder_email",
		"holder_phone", "guest_name", "additional_info", "status", "payment_id",
		"checked_in_at", "created_at", "updated_at",
	}).AddRow(id, ticketID, eventID, holderID, "Ada Lovelace", "ada@example.com",
		nil, nil, nil, string(status), nil, nil, now, now)
}

func capacityRows(maxTickets uint32, isPaid bool, fee uint32, allowWaitlist bool, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"max_tickets", "is_paid", "fee_cents", "allow_waitlist", "status"}).
		AddRow(maxTickets, isPaid, fee, allowWaitlist, status)
}

func sqlErrDuplicate() error {
	return errors.New("Error 1062: Duplicate entry 'x' for key 'reservations.ticket_id'")
}

func holder() model.HolderInfo {
	return model.HolderInfo{Name: "Ada Lovelace", Email: "ada@example.com"}
}

func TestReservationCreateConfirmedWhenFree(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(100, false, 0, false, model.EventPublished))
	mock.ExpectQuery("FROM reservations WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(42))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(7, "deadbeef", 1, 2, model.StatusConfirmed))
	mock.ExpectCommit()

	res, err := NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, "deadbeef", res.TicketID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreatePendingWhenPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(100, true, 2500, false, model.EventPublished))
	mock.ExpectQuery("FROM reservations WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(8, "cafe", 1, 2, model.StatusPending))
	mock.ExpectCommit()

	res, err := NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateCapacityExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(2, false, 0, false, model.EventPublished))
	mock.ExpectQuery("FROM reservations WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateWaitlistsWhenFull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(2, false, 0, true, model.EventPublished))
	mock.ExpectQuery("FROM reservations WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("INSERT INTO waitlist").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(9, "feed", 1, 2, model.StatusWaitlisted))
	mock.ExpectCommit()

	res, err := NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateEventClosed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(100, false, 0, false, model.EventClosed))
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	assert.ErrorIs(t, err, ErrEventClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateUnknownEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewReservationRepo(db).Create(context.Background(), 99, 2, holder())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateRegeneratesTicketOnCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(capacityRows(100, false, 0, false, model.EventPublished))
	mock.ExpectQuery("FROM reservations WHERE event_id").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnError(sqlErrDuplicate())
	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(10, "beef", 1, 2, model.StatusConfirmed))
	mock.ExpectCommit()

	res, err := NewReservationRepo(db).Create(context.Background(), 1, 2, holder())
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewTicketIDShape(t *testing.T) {
	a, err := newTicketID()
	require.NoError(t, err)
	b, err := newTicketID()
	require.NoError(t, err)
	assert.Len(t, a, 64) // 32 random bytes, hex encoded
	assert.NotEqual(t, a, b)
}
