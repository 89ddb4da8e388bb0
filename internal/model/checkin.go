package model

import "time"

// Check-in methods.  QRCODE is a gate scan, MANUAL is operator-entered
// at the desk, APP is a self check-in from the attendee application.
const (
	CheckInQRCode = "QRCODE"
	CheckInManual = "MANUAL"
	CheckInApp    = "APP"
)

// CheckIn is the append-only audit record of a ticket's consumption,
// stored in the `check_ins` table.  At most one row per reservation
// ever exists (unique key on reservation_id); inserting it is the sole
// mechanism that flips the reservation to CHECKED_IN, and that flip is
// one-way.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – consumed reservation (unique).
//  EventID       – event the ticket was scanned at.
//  Method        – QRCODE, MANUAL or APP.
//  OperatorID    – staff member who performed a manual check-in.
//  Notes         – free-form note attached by the operator.
//  CheckedInAt   – when the ticket was consumed.
type CheckIn struct {
	ID            uint64    // check_ins.id
	ReservationID uint64    // check_ins.reservation_id
	EventID       uint64    // check_ins.event_id
	Method        string    // check_ins.method
	OperatorID    *uint64   // check_ins.operator_id (nullable)
	Notes         *string   // check_ins.notes (nullable)
	CheckedInAt   time.Time // check_ins.checked_in_at
}
