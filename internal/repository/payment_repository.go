// Package repository: payment reconciliation.  PaymentRepo correlates
// external gateway transactions with pending reservations and drives
// their lifecycle transitions.  Signature verification of gateway
// callbacks happens in the service layer before any of these methods
// are reached; the repository only ever sees trusted payloads.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PaymentRepo manages persistence for payments.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateIntent opens a payment for a PENDING reservation and returns
// the record carrying the external transaction id the gateway will
// echo back in its signed callback.  The amount must equal the event's
// configured fee.  Fails with ErrInvalidTransition when the
// reservation is not awaiting payment and ErrNotFound when the ticket
// is unknown.
func (r *PaymentRepo) CreateIntent(ctx context.Context, ticketID string, amountCents uint32, currency string) (model.Payment, error) {
	var pay model.Payment
	err := runInTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			resID    uint64
			eventID  uint64
			statusDB string
			fee      uint32
		)
		err := tx.QueryRowContext(ctx,
			`SELECT r.id, r.event_id, r.status, e.fee_cents
			 FROM reservations r JOIN events e ON e.id = r.event_id
			 WHERE r.ticket_id = ? FOR UPDATE`, ticketID).
			Scan(&resID, &eventID, &statusDB, &fee)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if model.ReservationStatus(statusDB) != model.StatusPending {
			return ErrInvalidTransition
		}
		if amountCents != fee {
			return ErrInvalidTransition
		}
		txnID := uuid.NewString()
		resu, err := tx.ExecContext(ctx,
			`INSERT INTO payments (txn_id, reservation_id, amount_cents, currency) VALUES (?, ?, ?, ?)`,
			txnID, resID, amountCents, currency)
		if err != nil {
			return err
		}
		id, err := resu.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET payment_id = ? WHERE id = ?`, id, resID); err != nil {
			return err
		}
		pay, err = scanPaymentTx(ctx, tx, uint64(id))
		return err
	})
	if err != nil {
		return model.Payment{}, err
	}
	return pay, nil
}

// Confirm marks the payment COMPLETED and advances its reservation
// PENDING → CONFIRMED in one transaction.  A callback replayed for an
// already COMPLETED payment is a no-op success (gateways retry
// webhooks); the replayed flag tells the caller not to re-notify.
// The transition guard requires the recorded amount to equal the
// event's fee; a mismatch or any other state is ErrInvalidTransition,
// an unknown transaction is ErrNotFound.
func (r *PaymentRepo) Confirm(ctx context.Context, txnID string) (res model.Reservation, replayed bool, err error) {
	err = runInTx(ctx, r.db, func(tx *sql.Tx) error {
		replayed = false
		var (
			payID       uint64
			payStatus   string
			amount      uint32
			resID       uint64
			resStatusDB string
			fee         uint32
		)
		err := tx.QueryRowContext(ctx,
			`SELECT p.id, p.status, p.amount_cents, r.id, r.status, e.fee_cents
			 FROM payments p
			 JOIN reservations r ON r.id = p.reservation_id
			 JOIN events e ON e.id = r.event_id
			 WHERE p.txn_id = ? FOR UPDATE`, txnID).
			Scan(&payID, &payStatus, &amount, &resID, &resStatusDB, &fee)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if payStatus == model.PaymentCompleted {
			replayed = true
			res, err = scanReservationTx(ctx, tx, resID)
			return err
		}
		if payStatus != model.PaymentPending {
			return ErrInvalidTransition
		}
		if amount != fee {
			return ErrInvalidTransition
		}
		if model.ReservationStatus(resStatusDB) != model.StatusPending {
			return ErrInvalidTransition
		}
		if err := casPaymentTx(ctx, tx, payID, model.PaymentPending, model.PaymentCompleted,
			`completed_at = UTC_TIMESTAMP()`); err != nil {
			return err
		}
		if err := casReservationTx(ctx, tx, resID, model.StatusPending, model.StatusConfirmed); err != nil {
			return err
		}
		res, err = scanReservationTx(ctx, tx, resID)
		return err
	})
	if err != nil {
		return model.Reservation{}, false, err
	}
	return res, replayed, nil
}

// MarkFailed records a gateway failure: the payment becomes FAILED and
// the reservation PENDING → CANCELLED, freeing its slot and promoting
// the waitlist head in the same transaction.  Replayed failure
// callbacks for an already FAILED payment are a no-op success.
func (r *PaymentRepo) MarkFailed(ctx context.Context, txnID string) (promoted *model.Reservation, err error) {
	err = runInTx(ctx, r.db, func(tx *sql.Tx) error {
		promoted = nil
		var (
			payID       uint64
			payStatus   string
			resID       uint64
			eventID     uint64
			resStatusDB string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT p.id, p.status, r.id, r.event_id, r.status
			 FROM payments p JOIN reservations r ON r.id = p.reservation_id
			 WHERE p.txn_id = ? FOR UPDATE`, txnID).
			Scan(&payID, &payStatus, &resID, &eventID, &resStatusDB)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if payStatus == model.PaymentFailed {
			return nil
		}
		if payStatus != model.PaymentPending {
			return ErrInvalidTransition
		}
		if err := casPaymentTx(ctx, tx, payID, model.PaymentPending, model.PaymentFailed, ``); err != nil {
			return err
		}
		if model.ReservationStatus(resStatusDB) != model.StatusPending {
			// Reservation already left PENDING (e.g. cancelled by the
			// holder); the payment outcome alone is recorded.
			return nil
		}
		if err := casReservationTx(ctx, tx, resID, model.StatusPending, model.StatusCancelled); err != nil {
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

// Refund reverses a COMPLETED payment: the payment becomes REFUNDED
// and the reservation CONFIRMED → CANCELLED, freeing the slot and
// promoting the waitlist head.  The requester must be the holder;
// with admin set the requester may instead be the organizer of the
// ticket's event, never of another.  A ticket that was already
// consumed rejects with ErrAlreadyCheckedIn; a payment not COMPLETED
// rejects with ErrInvalidTransition.
func (r *PaymentRepo) Refund(ctx context.Context, ticketID, reason string, requesterID uint64, admin bool) (promoted *model.Reservation, err error) {
	err = runInTx(ctx, r.db, func(tx *sql.Tx) error {
		promoted = nil
		var (
			payID       sql.NullInt64
			payStatus   sql.NullString
			resID       uint64
			eventID     uint64
			holderID    uint64
			organizerID uint64
			resStatusDB string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT p.id, p.status, r.id, r.event_id, r.holder_id, e.organizer_id, r.status
			 FROM reservations r
			 JOIN events e ON e.id = r.event_id
			 LEFT JOIN payments p ON p.id = r.payment_id
			 WHERE r.ticket_id = ? FOR UPDATE`, ticketID).
			Scan(&payID, &payStatus, &resID, &eventID, &holderID, &organizerID, &resStatusDB)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if holderID != requesterID && !(admin && organizerID == requesterID) {
			return ErrForbidden
		}
		resStatus := model.ReservationStatus(resStatusDB)
		if resStatus == model.StatusCheckedIn {
			return ErrAlreadyCheckedIn
		}
		if !payID.Valid || payStatus.String != model.PaymentCompleted {
			return ErrInvalidTransition
		}
		if !resStatus.CanTransition(model.StatusCancelled) {
			return ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, refund_reason = ?, refunded_at = UTC_TIMESTAMP()
			 WHERE id = ? AND status = ?`,
			model.PaymentRefunded, reason, payID.Int64, model.PaymentCompleted); err != nil {
			return err
		}
		if err := casReservationTx(ctx, tx, resID, resStatus, model.StatusCancelled); err != nil {
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

// GetByTxnID returns the holder's payment identified by its external
// transaction id.  Scoping by holder makes another user's transaction
// indistinguishable from an unknown one: both are ErrNotFound.
func (r *PaymentRepo) GetByTxnID(ctx context.Context, txnID string, holderID uint64) (model.Payment, error) {
	pay, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT p.id, p.txn_id, p.reservation_id, p.amount_cents, p.currency, p.status,
		        p.refund_reason, p.completed_at, p.refunded_at, p.created_at
		 FROM payments p JOIN reservations r ON r.id = p.reservation_id
		 WHERE p.txn_id = ? AND r.holder_id = ?`, txnID, holderID))
	if err == sql.ErrNoRows {
		return model.Payment{}, ErrNotFound
	}
	return pay, err
}

// ListByHolder returns a holder's payment history, newest first.
func (r *PaymentRepo) ListByHolder(ctx context.Context, holderID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.txn_id, p.reservation_id, p.amount_cents, p.currency, p.status,
		        p.refund_reason, p.completed_at, p.refunded_at, p.created_at
		 FROM payments p JOIN reservations r ON r.id = p.reservation_id
		 WHERE r.holder_id = ? ORDER BY p.created_at DESC, p.id DESC`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		var (
			p        model.Payment
			reason   sql.NullString
			done     sql.NullTime
			refunded sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.TxnID, &p.ReservationID, &p.AmountCents, &p.Currency,
			&p.Status, &reason, &done, &refunded, &p.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			s := reason.String
			p.RefundReason = &s
		}
		if done.Valid {
			t := done.Time
			p.CompletedAt = &t
		}
		if refunded.Valid {
			t := refunded.Time
			p.RefundedAt = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const paymentColumns = `id, txn_id, reservation_id, amount_cents, currency, status,
	refund_reason, completed_at, refunded_at, created_at`

func scanPayment(row *sql.Row) (model.Payment, error) {
	var (
		p        model.Payment
		reason   sql.NullString
		done     sql.NullTime
		refunded sql.NullTime
	)
	err := row.Scan(&p.ID, &p.TxnID, &p.ReservationID, &p.AmountCents, &p.Currency,
		&p.Status, &reason, &done, &refunded, &p.CreatedAt)
	if err != nil {
		return model.Payment{}, err
	}
	if reason.Valid {
		s := reason.String
		p.RefundReason = &s
	}
	if done.Valid {
		t := done.Time
		p.CompletedAt = &t
	}
	if refunded.Valid {
		t := refunded.Time
		p.RefundedAt = &t
	}
	return p, nil
}

func scanPaymentTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
}

// casPaymentTx is the conditional payment state write: it only
// succeeds when the row is still in the expected state.  Zero rows
// affected means a concurrent writer got there first.
func casPaymentTx(ctx context.Context, tx *sql.Tx, id uint64, from, to, extraSet string) error {
	q := `UPDATE payments SET status = ?`
	if extraSet != "" {
		q += `, ` + extraSet
	}
	q += ` WHERE id = ? AND status = ?`
	resu, err := tx.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return err
	}
	n, err := resu.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// casReservationTx is the conditional reservation state write shared
// by the reconciliation paths.
func casReservationTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus) error {
	resu, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := resu.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
