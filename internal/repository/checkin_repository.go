// Package repository: check-in verification.  A scanned ticket is
// consumed exactly once: the reservation row is locked, the state is
// compare-and-set CONFIRMED → CHECKED_IN, and the audit record is
// inserted, all in one transaction.  Two gate scanners racing on the
// same ticket resolve to exactly one acceptance — the same discipline
// as capacity admission, applied to a single record instead of a
// counter.
package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// CheckInRepo manages the consumption of tickets and the append-only
// audit log of check-ins.
type CheckInRepo struct {
	db *sql.DB
}

// NewCheckInRepo returns a new CheckInRepo bound to the given database.
func NewCheckInRepo(db *sql.DB) *CheckInRepo { return &CheckInRepo{db: db} }

// Verify consumes the ticket at the gate of the given event.  On
// success the reservation is CHECKED_IN, its check-in timestamp is set
// (once, never cleared) and the audit row is written.  Rejections are
// distinguishable: ErrNotFound (unknown ticket), ErrWrongEvent
// (ticket for another event), ErrAlreadyCheckedIn (replayed scan) and
// ErrNotConfirmed (PENDING, WAITLISTED or CANCELLED ticket).  The
// manual desk path supplies an operator id and optional note; a scan
// supplies neither.
func (r *CheckInRepo) Verify(ctx context.Context, ticketID string, eventID uint64, method string, operatorID *uint64, notes *string) (model.Reservation, error) {
	var res model.Reservation
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			id       uint64
			resEvent uint64
			statusDB string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, event_id, status FROM reservations WHERE ticket_id = ? FOR UPDATE`,
			ticketID).Scan(&id, &resEvent, &statusDB)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if resEvent != eventID {
			return ErrWrongEvent
		}
		switch model.ReservationStatus(statusDB) {
		case model.StatusCheckedIn:
			return ErrAlreadyCheckedIn
		case model.StatusConfirmed:
			// consumable
		default:
			return ErrNotConfirmed
		}
		resu, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, checked_in_at = UTC_TIMESTAMP()
			 WHERE id = ? AND status = ?`,
			string(model.StatusCheckedIn), id, string(model.StatusConfirmed))
		if err != nil {
			return err
		}
		n, err := resu.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// A concurrent scan committed between our read and write.
			return ErrAlreadyCheckedIn
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO check_ins (reservation_id, event_id, method, operator_id, notes) VALUES (?, ?, ?, ?, ?)`,
			id, eventID, method, operatorID, notes); err != nil {
			if isDuplicateKey(err) {
				// Unique key on reservation_id: the audit row already
				// exists, so this ticket was consumed before.
				return ErrAlreadyCheckedIn
			}
			return err
		}
		res, err = scanReservationTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// EventStats summarizes gate progress for an event: how many tickets
// are eligible (CONFIRMED or CHECKED_IN), how many were consumed, and
// the most recent check-ins.
type EventStats struct {
	Eligible  int             `json:"eligible"`
	CheckedIn int             `json:"checked_in"`
	Pending   int             `json:"pending"`
	Recent    []model.CheckIn `json:"recent"`
}

// Stats returns the check-in statistics for an event.  The recent list
// is capped at the ten latest entries.
func (r *CheckInRepo) Stats(ctx context.Context, eventID uint64) (EventStats, error) {
	var st EventStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = ? AND status IN (?, ?)`,
		eventID, string(model.StatusConfirmed), string(model.StatusCheckedIn)).Scan(&st.Eligible)
	if err != nil {
		return EventStats{}, err
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM check_ins WHERE event_id = ?`, eventID).Scan(&st.CheckedIn)
	if err != nil {
		return EventStats{}, err
	}
	st.Pending = st.Eligible - st.CheckedIn
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, event_id, method, operator_id, notes, checked_in_at
		 FROM check_ins WHERE event_id = ? ORDER BY checked_in_at DESC, id DESC LIMIT 10`, eventID)
	if err != nil {
		return EventStats{}, err
	}
	defer rows.Close()
	st.Recent = make([]model.CheckIn, 0, 10)
	for rows.Next() {
		var (
			ci    model.CheckIn
			op    sql.NullInt64
			notes sql.NullString
		)
		if err := rows.Scan(&ci.ID, &ci.ReservationID, &ci.EventID, &ci.Method, &op, &notes, &ci.CheckedInAt); err != nil {
			return EventStats{}, err
		}
		if op.Valid {
			o := uint64(op.Int64)
			ci.OperatorID = &o
		}
		if notes.Valid {
			n := notes.String
			ci.Notes = &n
		}
		st.Recent = append(st.Recent, ci)
	}
	if err := rows.Err(); err != nil {
		return EventStats{}, err
	}
	return st, nil
}

// GetByReservation returns the check-in record for a reservation, or
// ErrNotFound when the ticket has not been consumed.
func (r *CheckInRepo) GetByReservation(ctx context.Context, reservationID uint64) (model.CheckIn, error) {
	var (
		ci    model.CheckIn
		op    sql.NullInt64
		notes sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, reservation_id, event_id, method, operator_id, notes, checked_in_at
		 FROM check_ins WHERE reservation_id = ?`, reservationID).
		Scan(&ci.ID, &ci.ReservationID, &ci.EventID, &ci.Method, &op, &notes, &ci.CheckedInAt)
	if err == sql.ErrNoRows {
		return model.CheckIn{}, ErrNotFound
	}
	if err != nil {
		return model.CheckIn{}, err
	}
	if op.Valid {
		o := uint64(op.Int64)
		ci.OperatorID = &o
	}
	if notes.Valid {
		n := notes.String
		ci.Notes = &n
	}
	return ci, nil
}
