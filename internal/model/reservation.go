package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
// PENDING is only reachable for paid events (awaiting payment).
// CHECKED_IN and CANCELLED are terminal.  WAITLISTED reservations hold
// no capacity slot and are promoted in FIFO order when one frees up.
type ReservationStatus string

const (
	StatusPending    ReservationStatus = "PENDING"
	StatusConfirmed  ReservationStatus = "CONFIRMED"
	StatusCheckedIn  ReservationStatus = "CHECKED_IN"
	StatusCancelled  ReservationStatus = "CANCELLED"
	StatusWaitlisted ReservationStatus = "WAITLISTED"
)

// Terminal reports whether no further transition may leave this state.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCheckedIn || s == StatusCancelled
}

// Active reports whether the reservation occupies a capacity slot.
// WAITLISTED and CANCELLED reservations do not count against an
// event's maximum; everything else does.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCheckedIn
}

// transitions is the lifecycle table.  Any pair absent from this map
// is an invalid transition and must be rejected without changing state.
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled},
	StatusWaitlisted: {StatusPending, StatusConfirmed, StatusCancelled},
}

// CanTransition reports whether the lifecycle permits moving from s to
// next.  Guards beyond the table itself (fee match, FIFO order) are
// enforced by the callers that drive the transition.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InitialStatus returns the state a newly admitted reservation starts
// in: PENDING when the event requires payment, CONFIRMED otherwise.
func InitialStatus(isPaid bool) ReservationStatus {
	if isPaid {
		return StatusPending
	}
	return StatusConfirmed
}

// Reservation is a holder's claim on one of an event's capacity slots,
// stored in the `reservations` table.  The TicketID is an opaque,
// unguessable token generated at creation and immutable thereafter; it
// is the identifier presented at the venue gate.  Only lifecycle
// transition operations in the repository layer mutate Status and
// CheckedInAt — handlers and services never write fields directly.
//
// Fields:
//  ID             – primary key identifier.
//  TicketID       – opaque random token (hex, 256-bit entropy).
//  EventID        – event being attended.
//  HolderID       – user who holds the ticket.
//  HolderName     – attendee name captured at registration.
//  HolderEmail    – attendee contact email.
//  HolderPhone    – optional contact phone.
//  GuestName      – optional plus-one guest.
//  AdditionalInfo – typed field-name → value map validated against the
//                   event's registration-field schema at write time.
//  Status         – lifecycle state, see ReservationStatus.
//  PaymentID      – associated payment row, when one exists.
//  CheckedInAt    – set exactly once by check-in, never cleared.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Reservation struct {
	ID             uint64            // reservations.id
	TicketID       string            // reservations.ticket_id
	EventID        uint64            // reservations.event_id
	HolderID       uint64            // reservations.holder_id
	HolderName     string            // reservations.holder_name
	HolderEmail    string            // reservations.holder_email
	HolderPhone    string            // reservations.holder_phone
	GuestName      *string           // reservations.guest_name (nullable)
	AdditionalInfo map[string]string // reservations.additional_info (JSON)
	Status         ReservationStatus // reservations.status
	PaymentID      *uint64           // reservations.payment_id (nullable)
	CheckedInAt    *time.Time        // reservations.checked_in_at (nullable)
	CreatedAt      time.Time         // reservations.created_at
	UpdatedAt      time.Time         // reservations.updated_at
}

// HolderInfo carries the attendee details supplied with a reservation
// request.  It exists so the service layer can validate input shape
// before anything touches the store.
type HolderInfo struct {
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone,omitempty"`
	GuestName      string            `json:"guest_name,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
}
