package model

import "time"

// Event represents a bookable event as stored in the `events` table.
// Capacity is governed by MaxTickets; the number of issued tickets is
// never cached on this record — it is always counted from the active
// reservations inside the same transaction that admits a new one, so
// the two can never drift apart.
//
// Fields:
//  ID            – primary key identifier.
//  Title         – display name of the event.
//  Venue         – where the event takes place.
//  StartsAt      – when the event begins.
//  MaxTickets    – maximum number of active reservations (immutable once
//                  the first reservation exists).
//  IsPaid        – whether a completed payment is required to confirm.
//  FeeCents      – ticket fee in cents when IsPaid is true.
//  AllowWaitlist – whether exhausted capacity enqueues instead of rejecting.
//  OrganizerID   – user who created the event.
//  Status        – current state (PUBLISHED, CLOSED, CANCELLED).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Event struct {
	ID            uint64    // events.id
	Title         string    // events.title
	Venue         string    // events.venue
	StartsAt      time.Time // events.starts_at
	MaxTickets    uint32    // events.max_tickets
	IsPaid        bool      // events.is_paid
	FeeCents      uint32    // events.fee_cents
	AllowWaitlist bool      // events.allow_waitlist
	OrganizerID   uint64    // events.organizer_id
	Status        string    // events.status
	CreatedAt     time.Time // events.created_at
	UpdatedAt     time.Time // events.updated_at
}

// Event status values.  PUBLISHED events accept reservations; CLOSED
// and CANCELLED events reject them.
const (
	EventPublished = "PUBLISHED"
	EventClosed    = "CLOSED"
	EventCancelled = "CANCELLED"
)

// CapacityConfig is the slice of an event that admission and payment
// decisions depend on.  Repositories return it from inside the same
// transaction that performs the conditional write, so the values are
// consistent with the admission check.
type CapacityConfig struct {
	MaxTickets    uint32
	IsPaid        bool
	FeeCents      uint32
	AllowWaitlist bool
	Status        string
}

// RegistrationField declares one entry of an event's registration-field
// schema.  A reservation's additional info map is validated against
// these declarations at write time rather than stored as opaque
// free-form data.
//
// Fields:
//  Name     – key used in the reservation's additional info map.
//  Label    – human readable label shown on the registration form.
//  Type     – input type: text, email, phone, select or checkbox.
//  Required – whether the field must be present and non-empty.
//  Options  – allowed values for select/checkbox fields.
type RegistrationField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}
