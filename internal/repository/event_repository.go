// Package repository contains data access logic for event records.  An
// event carries the capacity configuration that admission decisions
// depend on: maximum tickets, whether payment is required, the fee and
// whether a waitlist is allowed.  The issued-ticket count is never
// stored on the event row; it is always counted from the reservations
// table inside the same transaction that performs the admission.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event together with its registration-field
// schema and populates the generated ID and DB-default fields on the
// provided Event.  MaxTickets must be positive; the caller validates
// input shape before reaching the repository.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event, fields []model.RegistrationField) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const q = `INSERT INTO events
	           (title, venue, starts_at, max_tickets, is_paid, fee_cents, allow_waitlist, organizer_id, registration_fields)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.Venue, ev.StartsAt.UTC().Format("2006-01-02 15:04:05"),
		ev.MaxTickets, ev.IsPaid, ev.FeeCents, ev.AllowWaitlist, ev.OrganizerID, fieldsJSON)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	// Query back the row to populate status and timestamps set by DB defaults.
	const sel = `SELECT id, title, venue, starts_at, max_tickets, is_paid, fee_cents,
	                    allow_waitlist, organizer_id, status, created_at, updated_at
	             FROM events WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, ev.ID).Scan(
		&ev.ID, &ev.Title, &ev.Venue, &ev.StartsAt, &ev.MaxTickets, &ev.IsPaid, &ev.FeeCents,
		&ev.AllowWaitlist, &ev.OrganizerID, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt,
	)
}

// GetByID returns the event with the given id or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT id, title, venue, starts_at, max_tickets, is_paid, fee_cents,
	                  allow_waitlist, organizer_id, status, created_at, updated_at
	           FROM events WHERE id = ?`
	var ev model.Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ev.ID, &ev.Title, &ev.Venue, &ev.StartsAt, &ev.MaxTickets, &ev.IsPaid, &ev.FeeCents,
		&ev.AllowWaitlist, &ev.OrganizerID, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

// Exists reports whether an event row with the given id exists,
// regardless of its status.
func (r *EventRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// capacityConfigTx reads the event's capacity configuration inside the
// caller's transaction, locking the event row with FOR UPDATE.  The
// lock serializes concurrent admissions for the same event: two
// reservation attempts cannot both count the remaining capacity until
// one of them has committed.  Returns ErrNotFound for unknown events.
func capacityConfigTx(ctx context.Context, tx *sql.Tx, eventID uint64) (model.CapacityConfig, error) {
	const q = `SELECT max_tickets, is_paid, fee_cents, allow_waitlist, status
	           FROM events WHERE id = ? FOR UPDATE`
	var cfg model.CapacityConfig
	err := tx.QueryRowContext(ctx, q, eventID).Scan(
		&cfg.MaxTickets, &cfg.IsPaid, &cfg.FeeCents, &cfg.AllowWaitlist, &cfg.Status,
	)
	if err == sql.ErrNoRows {
		return model.CapacityConfig{}, ErrNotFound
	}
	return cfg, err
}

// RegistrationFields returns the event's declared registration-field
// schema.  An event without custom fields yields an empty slice.
func (r *EventRepo) RegistrationFields(ctx context.Context, eventID uint64) ([]model.RegistrationField, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT registration_fields FROM events WHERE id = ?`, eventID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return []model.RegistrationField{}, nil
	}
	var fields []model.RegistrationField
	if err := json.Unmarshal([]byte(raw.String), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Close transitions an event to CLOSED so it no longer accepts
// reservations.  Only the organizer who created the event may close
// it; other callers receive ErrForbidden.
func (r *EventRepo) Close(ctx context.Context, eventID, organizerID uint64) error {
	var actual uint64
	err := r.db.QueryRowContext(ctx, `SELECT organizer_id FROM events WHERE id = ?`, eventID).Scan(&actual)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if actual != organizerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ? AND status = ?`,
		model.EventClosed, eventID, model.EventPublished)
	return err
}

// Delete removes an event and cascades to its reservations, payments,
// check-in records and waitlist entries in one transaction.  Only the
// organizer may delete.  The deletion order respects foreign keys:
// children before the event row itself.
func (r *EventRepo) Delete(ctx context.Context, eventID, organizerID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var actual uint64
	err = tx.QueryRowContext(ctx, `SELECT organizer_id FROM events WHERE id = ? FOR UPDATE`, eventID).Scan(&actual)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if actual != organizerID {
		return ErrForbidden
	}
	for _, q := range []string{
		`DELETE FROM check_ins WHERE event_id = ?`,
		`DELETE FROM waitlist WHERE event_id = ?`,
		`DELETE p FROM payments p JOIN reservations r ON r.id = p.reservation_id WHERE r.event_id = ?`,
		`DELETE FROM reservations WHERE event_id = ?`,
		`DELETE FROM events WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, eventID); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
