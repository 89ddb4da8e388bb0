// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into notifications.
package queue

// Queue names.  One durable queue per event type; delivery is
// best-effort from the ticket lifecycle's point of view — a publish
// failure never rolls back the transition that triggered it.
const (
	QueueReservationConfirmed = "reservation.confirmed"
	QueueCheckInRecorded      = "checkin.recorded"
	QueueWaitlistPromoted     = "waitlist.promoted"
)

// ReservationConfirmedEvent is published when a reservation reaches
// CONFIRMED, either at creation (free event) or after payment
// reconciliation.  It carries enough for downstream consumers to
// notify the holder without querying the primary database.
type ReservationConfirmedEvent struct {
	TicketID    string `json:"ticket_id"`
	EventID     uint64 `json:"event_id"`
	EventTitle  string `json:"event_title"`
	HolderName  string `json:"holder_name"`
	HolderEmail string `json:"holder_email"`
	ConfirmedAt string `json:"confirmed_at"`
}

// CheckInRecordedEvent is published when a ticket is consumed at the gate.
type CheckInRecordedEvent struct {
	TicketID    string  `json:"ticket_id"`
	EventID     uint64  `json:"event_id"`
	Method      string  `json:"method"`
	OperatorID  *uint64 `json:"operator_id,omitempty"`
	CheckedInAt string  `json:"checked_in_at"`
}

// WaitlistPromotedEvent is published when a freed slot promotes the
// head of an event's waitlist.  NewStatus is PENDING for paid events
// (the promoted holder still owes the fee) and CONFIRMED otherwise.
type WaitlistPromotedEvent struct {
	TicketID    string `json:"ticket_id"`
	EventID     uint64 `json:"event_id"`
	HolderName  string `json:"holder_name"`
	HolderEmail string `json:"holder_email"`
	NewStatus   string `json:"new_status"`
	PromotedAt  string `json:"promoted_at"`
}
