package model

import "time"

// Payment status values.  COMPLETED, FAILED and REFUNDED are terminal;
// a gateway callback replayed for an already COMPLETED payment is a
// no-op success since gateways retry webhooks.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Payment mirrors the `payments` table.  Each row records one payment
// intent for a reservation, identified externally by the gateway
// transaction id.  A reservation can have at most one non-failed
// payment at a time; a CONFIRMED reservation on a paid event always
// corresponds to exactly one COMPLETED payment.
//
// Fields:
//  ID            – primary key identifier.
//  TxnID         – unique external transaction identifier handed to the
//                  gateway and echoed back in its signed callback.
//  ReservationID – reservation this payment settles.
//  AmountCents   – charged amount in cents.
//  Currency      – ISO currency code.
//  Status        – PENDING, COMPLETED, FAILED or REFUNDED.
//  RefundReason  – reason supplied with a refund request.
//  CompletedAt   – when the gateway confirmed the payment.
//  RefundedAt    – when the refund was processed.
//  CreatedAt     – creation timestamp.
type Payment struct {
	ID            uint64     // payments.id
	TxnID         string     // payments.txn_id
	ReservationID uint64     // payments.reservation_id
	AmountCents   uint32     // payments.amount_cents
	Currency      string     // payments.currency
	Status        string     // payments.status
	RefundReason  *string    // payments.refund_reason (nullable)
	CompletedAt   *time.Time // payments.completed_at (nullable)
	RefundedAt    *time.Time // payments.refunded_at (nullable)
	CreatedAt     time.Time  // payments.created_at
}
