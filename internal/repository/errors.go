// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios with errors.Is instead of inspecting driver errors.  The
// set mirrors the business taxonomy: capacity and lifecycle rejects are
// terminal decisions a client should not retry, while ErrConflict marks
// exhausted optimistic-concurrency retries where a retry may succeed.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an event, ticket or payment does not
// exist.  Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrCapacityExceeded is returned when admission is denied because the
// event's active reservations already equal its configured maximum.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrEventClosed is returned when the target event no longer accepts
// reservations (CLOSED or CANCELLED).
var ErrEventClosed = errors.New("event closed")

// ErrInvalidTransition is returned when a lifecycle guard is violated:
// a transition attempted from a terminal state, or one absent from the
// transition table.  State is left unchanged.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrAlreadyCheckedIn is the check-in specific lifecycle reject: the
// ticket was already consumed.  It wraps ErrInvalidTransition so
// errors.Is(err, ErrInvalidTransition) also holds.
var ErrAlreadyCheckedIn = fmt.Errorf("already checked in: %w", ErrInvalidTransition)

// ErrNotConfirmed is returned by the check-in verifier when the ticket
// exists but is not in a consumable state (still PENDING, WAITLISTED
// or CANCELLED).
var ErrNotConfirmed = errors.New("reservation not confirmed")

// ErrWrongEvent is returned when a scanned ticket belongs to a
// different event than the gate it was presented at.
var ErrWrongEvent = errors.New("ticket belongs to another event")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrSignatureMismatch is returned when a payment callback's HMAC does
// not verify against the shared webhook secret.  The payload is not
// trusted and nothing is mutated.
var ErrSignatureMismatch = errors.New("signature mismatch")

// ErrConflict is returned after the store's bounded internal retries
// for serialization failures are exhausted.  Unlike the other
// sentinels it signals a transient condition the caller may retry.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering a user whose email is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenInvalid is returned when a presented refresh token is
// unknown, expired or already revoked.  The three cases are
// indistinguishable on purpose.
var ErrTokenInvalid = errors.New("refresh token invalid")
