package model

import "time"

// WaitlistEntry is a row in the `waitlist` table: a reservation parked
// because the event's capacity was exhausted at admission time.  The
// auto-increment ID doubles as the FIFO position; the oldest entry is
// promoted when a cancellation or refund frees a slot.
//
// Fields:
//  ID            – primary key and queue position.
//  EventID       – event being waited on.
//  ReservationID – the WAITLISTED reservation.
//  CreatedAt     – when the holder joined the queue.
type WaitlistEntry struct {
	ID            uint64    // waitlist.id
	EventID       uint64    // waitlist.event_id
	ReservationID uint64    // waitlist.reservation_id
	CreatedAt     time.Time // waitlist.created_at
}
