package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// WaitlistRepo provides read access to the FIFO waitlist.  Writes —
// enqueueing on admission and promotion on a freed slot — happen
// inside the reservation and payment transactions, never as separate
// steps, so the queue can only change together with the reservations
// it tracks.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// Position returns a reservation's 1-based place in its event's
// waitlist, or ErrNotFound when the reservation is not queued.
func (r *WaitlistRepo) Position(ctx context.Context, reservationID uint64) (int, error) {
	var entryID, eventID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id FROM waitlist WHERE reservation_id = ?`, reservationID).
		Scan(&entryID, &eventID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var ahead int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE event_id = ? AND id < ?`, eventID, entryID).
		Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// CountByEvent returns the number of holders currently queued for an event.
func (r *WaitlistRepo) CountByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waitlist WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

// promoteHeadTx pops the oldest waitlist entry for the event and
// advances its reservation out of WAITLISTED, all inside the caller's
// transaction — the same one that freed the slot.  Promotion lands on
// PENDING for paid events (the promoted holder still owes the fee) and
// CONFIRMED otherwise.  Returns nil when the waitlist is empty.
//
// The head row is locked FOR UPDATE so two concurrent slot-freeing
// transactions cannot promote the same entry.
func promoteHeadTx(ctx context.Context, tx *sql.Tx, eventID uint64) (*model.Reservation, error) {
	var isPaid bool
	if err := tx.QueryRowContext(ctx,
		`SELECT is_paid FROM events WHERE id = ?`, eventID).Scan(&isPaid); err != nil {
		return nil, err
	}
	next := model.InitialStatus(isPaid)
	for {
		var entryID, reservationID uint64
		err := tx.QueryRowContext(ctx,
			`SELECT id, reservation_id FROM waitlist WHERE event_id = ? ORDER BY id LIMIT 1 FOR UPDATE`,
			eventID).Scan(&entryID, &reservationID)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		resu, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
			string(next), reservationID, string(model.StatusWaitlisted))
		if err != nil {
			return nil, err
		}
		n, err := resu.RowsAffected()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM waitlist WHERE id = ?`, entryID); err != nil {
			return nil, err
		}
		if n == 0 {
			// The queued reservation left WAITLISTED some other way; the
			// entry was stale.  Try the next one in FIFO order.
			continue
		}
		promoted, err := scanReservationTx(ctx, tx, reservationID)
		if err != nil {
			return nil, err
		}
		return &promoted, nil
	}
}
