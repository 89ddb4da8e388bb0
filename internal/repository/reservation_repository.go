// Package repository: the ticket store.  ReservationRepo owns every
// reservation record; the capacity check and the insert are composed
// into one transaction so that under N concurrent callers competing
// for the last slot exactly one admission succeeds.  The admission
// predicate is never a separate read-then-write step — the event row
// is locked FOR UPDATE, the active reservations are counted under that
// lock, and the insert happens before the lock is released.
package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ReservationRepo provides the atomic lifecycle operations for
// reservations.  Higher layers never mutate reservation fields
// directly; they go through these methods.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// newTicketID generates an opaque ticket identifier from 32 bytes of
// cryptographically secure randomness (64 hex characters).  Uniqueness
// is additionally enforced by the unique key on reservations.ticket_id;
// the astronomically rare collision is retried, never surfaced.
func newTicketID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// activeStatuses is the set of states that occupy a capacity slot.
const activeStatuses = `'PENDING','CONFIRMED','CHECKED_IN'`

// Create admits a new reservation for the event, or parks it on the
// waitlist when capacity is exhausted and the event allows one.  The
// entire decision runs in a single transaction:
//
//	lock event row → count active reservations → conditional insert
//
// Returns ErrNotFound for unknown events, ErrEventClosed for events no
// longer accepting reservations and ErrCapacityExceeded when full with
// no waitlist.  The created reservation starts PENDING for paid events
// and CONFIRMED otherwise (WAITLISTED when parked).
func (r *ReservationRepo) Create(ctx context.Context, eventID, holderID uint64, info model.HolderInfo) (model.Reservation, error) {
	var res model.Reservation
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		cfg, err := capacityConfigTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if cfg.Status != model.EventPublished {
			return ErrEventClosed
		}
		var active uint32
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reservations WHERE event_id = ? AND status IN (`+activeStatuses+`)`,
			eventID).Scan(&active)
		if err != nil {
			return err
		}
		status := model.InitialStatus(cfg.IsPaid)
		if active >= cfg.MaxTickets {
			if !cfg.AllowWaitlist {
				return ErrCapacityExceeded
			}
			status = model.StatusWaitlisted
		}
		id, err := insertReservationTx(ctx, tx, eventID, holderID, info, status)
		if err != nil {
			return err
		}
		if status == model.StatusWaitlisted {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO waitlist (event_id, reservation_id) VALUES (?, ?)`,
				eventID, id); err != nil {
				return err
			}
		}
		res, err = scanReservationTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// insertReservationTx performs the insert, regenerating the ticket
// token if the unique key on ticket_id reports a collision.
func insertReservationTx(ctx context.Context, tx *sql.Tx, eventID, holderID uint64, info model.HolderInfo, status model.ReservationStatus) (uint64, error) {
	var infoJSON []byte
	if len(info.AdditionalInfo) > 0 {
		var err error
		infoJSON, err = json.Marshal(info.AdditionalInfo)
		if err != nil {
			return 0, err
		}
	}
	var guest *string
	if info.GuestName != "" {
		guest = &info.GuestName
	}
	const q = `INSERT INTO reservations
	           (ticket_id, event_id, holder_id, holder_name, holder_email, holder_phone, guest_name, additional_info, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for {
		ticketID, err := newTicketID()
		if err != nil {
			return 0, err
		}
		resu, err := tx.ExecContext(ctx, q,
			ticketID, eventID, holderID, info.Name, info.Email, info.Phone, guest, infoJSON, string(status))
		if err != nil {
			if isDuplicateKey(err) {
				continue // token collision: regenerate, never fail the caller
			}
			return 0, err
		}
		id, err := resu.LastInsertId()
		if err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
}

const reservationColumns = `id, ticket_id, event_id, holder_id, holder_name, holder_email,
	holder_phone, guest_name, additional_info, status, payment_id, checked_in_at, created_at, updated_at`

// scanReservation reads one reservation row from the given row scanner.
func scanReservation(row *sql.Row) (model.Reservation, error) {
	var (
		res      model.Reservation
		phone    sql.NullString
		guest    sql.NullString
		infoRaw  sql.NullString
		payID    sql.NullInt64
		checked  sql.NullTime
		statusDB string
	)
	err := row.Scan(&res.ID, &res.TicketID, &res.EventID, &res.HolderID, &res.HolderName,
		&res.HolderEmail, &phone, &guest, &infoRaw, &statusDB, &payID, &checked,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(statusDB)
	if phone.Valid {
		res.HolderPhone = phone.String
	}
	if guest.Valid {
		g := guest.String
		res.GuestName = &g
	}
	if infoRaw.Valid && infoRaw.String != "" {
		if err := json.Unmarshal([]byte(infoRaw.String), &res.AdditionalInfo); err != nil {
			return model.Reservation{}, err
		}
	}
	if payID.Valid {
		p := uint64(payID.Int64)
		res.PaymentID = &p
	}
	if checked.Valid {
		t := checked.Time
		res.CheckedInAt = &t
	}
	return res, nil
}

func scanReservationTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

// GetByTicketID returns the reservation identified by its opaque
// ticket token, or ErrNotFound.
func (r *ReservationRepo) GetByTicketID(ctx context.Context, ticketID string) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE ticket_id = ?`, ticketID))
	if err == sql.ErrNoRows {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// ListByHolder returns all reservations held by a user, newest first.
func (r *ReservationRepo) ListByHolder(ctx context.Context, holderID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `holder_id`, holderID)
}

// ListByEvent returns all reservations for an event, newest first.
// Ownership checks belong to the caller.
func (r *ReservationRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `event_id`, eventID)
}

func (r *ReservationRepo) list(ctx context.Context, column string, id uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE `+column+` = ? ORDER BY created_at DESC, id DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var (
			res      model.Reservation
			phone    sql.NullString
			guest    sql.NullString
			infoRaw  sql.NullString
			payID    sql.NullInt64
			checked  sql.NullTime
			statusDB string
		)
		if err := rows.Scan(&res.ID, &res.TicketID, &res.EventID, &res.HolderID, &res.HolderName,
			&res.HolderEmail, &phone, &guest, &infoRaw, &statusDB, &payID, &checked,
			&res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		res.Status = model.ReservationStatus(statusDB)
		if phone.Valid {
			res.HolderPhone = phone.String
		}
		if guest.Valid {
			g := guest.String
			res.GuestName = &g
		}
		if infoRaw.Valid && infoRaw.String != "" {
			if err := json.Unmarshal([]byte(infoRaw.String), &res.AdditionalInfo); err != nil {
				return nil, err
			}
		}
		if payID.Valid {
			p := uint64(payID.Int64)
			res.PaymentID = &p
		}
		if checked.Valid {
			t := checked.Time
			res.CheckedInAt = &t
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel transitions a reservation to CANCELLED and, when the
// cancelled reservation occupied a capacity slot, promotes the oldest
// waitlist entry in the same transaction — a freed slot is visible to
// a following reserve call immediately, with no recount delay.  The
// requester must be the holder; with admin set the requester may
// instead be the organizer of the ticket's event, never of another.
// Returns the promoted reservation, if any, so the caller can notify
// its holder.
//
// A concurrent check-in on the same ticket cannot interleave: both
// paths lock the reservation row, so whichever commits first wins and
// the loser observes the terminal state.
func (r *ReservationRepo) Cancel(ctx context.Context, ticketID string, requesterID uint64, admin bool) (*model.Reservation, error) {
	var promoted *model.Reservation
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		promoted = nil
		var (
			id          uint64
			eventID     uint64
			holderID    uint64
			organizerID uint64
			statusDB    string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT r.id, r.event_id, r.holder_id, e.organizer_id, r.status
			 FROM reservations r JOIN events e ON e.id = r.event_id
			 WHERE r.ticket_id = ? FOR UPDATE`,
			ticketID).Scan(&id, &eventID, &holderID, &organizerID, &statusDB)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if holderID != requesterID && !(admin && organizerID == requesterID) {
			return ErrForbidden
		}
		status := model.ReservationStatus(statusDB)
		if status == model.StatusCheckedIn {
			return ErrAlreadyCheckedIn
		}
		if !status.CanTransition(model.StatusCancelled) {
			return ErrInvalidTransition
		}
		resu, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
			string(model.StatusCancelled), id, statusDB)
		if err != nil {
			return err
		}
		if n, err := resu.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrConflict
		}
		if status == model.StatusWaitlisted {
			// A parked reservation held no slot; just drop its queue entry.
			_, err = tx.ExecContext(ctx, `DELETE FROM waitlist WHERE reservation_id = ?`, id)
			return err
		}
		promoted, err = promoteHeadTx(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}
