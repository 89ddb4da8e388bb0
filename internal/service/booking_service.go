// Package service coordinates the ticket lifecycle across repositories:
// it validates input shape, drives reservation/payment/check-in
// transitions and emits broker notifications for the ones that matter
// to holders.  All persistence-level atomicity lives one layer down in
// the repository package; this layer sequences the calls and decides
// what gets announced.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ErrInvalidInput marks requests rejected before any store access:
// missing holder fields, values outside a declared option set, unknown
// registration keys, unsupported check-in methods.
var ErrInvalidInput = errors.New("invalid input")

// Notifier receives lifecycle announcements.  Publish failures are the
// implementation's problem (log and move on); a transition that already
// committed is never rolled back because a notification did not go out.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent)
	CheckInRecorded(ctx context.Context, ev queue.CheckInRecordedEvent)
	WaitlistPromoted(ctx context.Context, ev queue.WaitlistPromotedEvent)
}

// BrokerNotifier forwards announcements to the message broker.
type BrokerNotifier struct{}

func (BrokerNotifier) ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) {
	_ = queue.PublishReservationConfirmed(ctx, ev)
}

func (BrokerNotifier) CheckInRecorded(ctx context.Context, ev queue.CheckInRecordedEvent) {
	_ = queue.PublishCheckInRecorded(ctx, ev)
}

func (BrokerNotifier) WaitlistPromoted(ctx context.Context, ev queue.WaitlistPromotedEvent) {
	_ = queue.PublishWaitlistPromoted(ctx, ev)
}

// BookingService is the coordinator for everything that happens to a
// ticket after the event exists: issuing reservations, reconciling
// payments, cancelling, refunding and consuming tickets at the gate.
type BookingService struct {
	Events       *repository.EventRepo
	Reservations *repository.ReservationRepo
	Payments     *repository.PaymentRepo
	CheckIns     *repository.CheckInRepo

	notify        Notifier
	paymentSecret string
	notifyMode    string // config.NotifySync or config.NotifyAsync
}

// NewBookingService wires the coordinator.  notify may not be nil.
func NewBookingService(events *repository.EventRepo, reservations *repository.ReservationRepo, payments *repository.PaymentRepo, checkIns *repository.CheckInRepo, notify Notifier, paymentSecret, notifyMode string) *BookingService {
	return &BookingService{
		Events:        events,
		Reservations:  reservations,
		Payments:      payments,
		CheckIns:      checkIns,
		notify:        notify,
		paymentSecret: paymentSecret,
		notifyMode:    notifyMode,
	}
}

// Reserve validates the holder payload against the event's registration
// schema and issues a reservation.  Free events come back CONFIRMED and
// are announced immediately; paid events come back PENDING and are
// announced after payment reconciliation.  A full event yields either a
// WAITLISTED reservation or repository.ErrCapacityExceeded, depending
// on the event's waitlist setting.
func (s *BookingService) Reserve(ctx context.Context, eventID, holderID uint64, info model.HolderInfo) (model.Reservation, error) {
	ev, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return model.Reservation{}, err
	}
	fields, err := s.Events.RegistrationFields(ctx, eventID)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := validateHolderInfo(info, fields); err != nil {
		return model.Reservation{}, err
	}

	res, err := s.Reservations.Create(ctx, eventID, holderID, info)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.Status == model.StatusConfirmed {
		s.notify.ReservationConfirmed(ctx, queue.ReservationConfirmedEvent{
			TicketID:    res.TicketID,
			EventID:     ev.ID,
			EventTitle:  ev.Title,
			HolderName:  res.HolderName,
			HolderEmail: res.HolderEmail,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return res, nil
}

// InitiatePayment opens a payment intent for the requester's own
// PENDING reservation.  Only the holder may pay for a ticket.
func (s *BookingService) InitiatePayment(ctx context.Context, ticketID string, requesterID uint64, amountCents uint32, currency string) (model.Payment, error) {
	res, err := s.Reservations.GetByTicketID(ctx, ticketID)
	if err != nil {
		return model.Payment{}, err
	}
	if res.HolderID != requesterID {
		return model.Payment{}, repository.ErrForbidden
	}
	return s.Payments.CreateIntent(ctx, ticketID, amountCents, currency)
}

// PaymentCallback is the gateway's reconciliation payload.  Signature
// covers "TxnID|GatewayRef" under the shared webhook secret.
type PaymentCallback struct {
	TxnID      string `json:"txn_id"`
	GatewayRef string `json:"gateway_ref"`
	Status     string `json:"status"` // "completed" or "failed"
	Signature  string `json:"signature"`
}

// HandlePaymentCallback reconciles a gateway callback.  The signature
// is verified before anything is read or written; a replayed completed
// callback is acknowledged without re-announcing the confirmation.
func (s *BookingService) HandlePaymentCallback(ctx context.Context, cb PaymentCallback) error {
	if !VerifyPaymentCallback(s.paymentSecret, cb.TxnID, cb.GatewayRef, cb.Signature) {
		return repository.ErrSignatureMismatch
	}

	switch cb.Status {
	case "completed":
		res, replayed, err := s.Payments.Confirm(ctx, cb.TxnID)
		if err != nil {
			return err
		}
		if replayed {
			return nil
		}
		ev, err := s.Events.GetByID(ctx, res.EventID)
		if err != nil {
			// Confirmation already committed; announce with what we have.
			log.Printf("payment callback: event lookup for %d failed: %v", res.EventID, err)
		}
		s.notify.ReservationConfirmed(ctx, queue.ReservationConfirmedEvent{
			TicketID:    res.TicketID,
			EventID:     res.EventID,
			EventTitle:  ev.Title,
			HolderName:  res.HolderName,
			HolderEmail: res.HolderEmail,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return nil
	case "failed":
		promoted, err := s.Payments.MarkFailed(ctx, cb.TxnID)
		if err != nil {
			return err
		}
		s.announcePromotion(ctx, promoted)
		return nil
	default:
		return fmt.Errorf("%w: unknown callback status %q", ErrInvalidInput, cb.Status)
	}
}

// Cancel releases the requester's reservation (or any reservation, for
// an organizer acting on their event).  If the freed slot promoted a
// waitlisted holder, that promotion is announced.
func (s *BookingService) Cancel(ctx context.Context, ticketID string, requesterID uint64, admin bool) error {
	promoted, err := s.Reservations.Cancel(ctx, ticketID, requesterID, admin)
	if err != nil {
		return err
	}
	s.announcePromotion(ctx, promoted)
	return nil
}

// Refund reverses a completed payment and cancels its reservation.
func (s *BookingService) Refund(ctx context.Context, ticketID, reason string, requesterID uint64, admin bool) error {
	promoted, err := s.Payments.Refund(ctx, ticketID, reason, requesterID, admin)
	if err != nil {
		return err
	}
	s.announcePromotion(ctx, promoted)
	return nil
}

// CheckIn consumes a ticket at the gate.  MANUAL check-ins must name
// the staff member who performed them.
func (s *BookingService) CheckIn(ctx context.Context, ticketID string, eventID uint64, method string, operatorID *uint64, notes *string) (model.Reservation, error) {
	switch method {
	case model.CheckInQRCode, model.CheckInManual, model.CheckInApp:
	default:
		return model.Reservation{}, fmt.Errorf("%w: unknown check-in method %q", ErrInvalidInput, method)
	}
	if method == model.CheckInManual && operatorID == nil {
		return model.Reservation{}, fmt.Errorf("%w: manual check-in requires an operator", ErrInvalidInput)
	}

	res, err := s.CheckIns.Verify(ctx, ticketID, eventID, method, operatorID, notes)
	if err != nil {
		return model.Reservation{}, err
	}
	checkedInAt := time.Now().UTC()
	if res.CheckedInAt != nil {
		checkedInAt = *res.CheckedInAt
	}
	s.notify.CheckInRecorded(ctx, queue.CheckInRecordedEvent{
		TicketID:    res.TicketID,
		EventID:     res.EventID,
		Method:      method,
		OperatorID:  operatorID,
		CheckedInAt: checkedInAt.Format(time.RFC3339),
	})
	return res, nil
}

// announcePromotion emits a waitlist-promotion notification, inline or
// on a detached goroutine depending on the configured mode.  promoted
// may be nil (no waitlist movement happened).
func (s *BookingService) announcePromotion(ctx context.Context, promoted *model.Reservation) {
	if promoted == nil {
		return
	}
	ev := queue.WaitlistPromotedEvent{
		TicketID:    promoted.TicketID,
		EventID:     promoted.EventID,
		HolderName:  promoted.HolderName,
		HolderEmail: promoted.HolderEmail,
		NewStatus:   string(promoted.Status),
		PromotedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if s.notifyMode == config.NotifySync {
		s.notify.WaitlistPromoted(ctx, ev)
		return
	}
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notify.WaitlistPromoted(bg, ev)
	}()
}

// validateHolderInfo checks the holder payload against the event's
// declared registration-field schema.  Keys that no field declares are
// rejected rather than stored.
func validateHolderInfo(info model.HolderInfo, fields []model.RegistrationField) error {
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("%w: holder name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(info.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid holder email is required", ErrInvalidInput)
	}

	declared := make(map[string]model.RegistrationField, len(fields))
	for _, f := range fields {
		declared[f.Name] = f
		v, ok := info.AdditionalInfo[f.Name]
		if f.Required && (!ok || strings.TrimSpace(v) == "") {
			return fmt.Errorf("%w: field %q is required", ErrInvalidInput, f.Name)
		}
		if ok && len(f.Options) > 0 && !contains(f.Options, v) {
			return fmt.Errorf("%w: field %q does not allow %q", ErrInvalidInput, f.Name, v)
		}
	}
	for k := range info.AdditionalInfo {
		if _, ok := declared[k]; !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, k)
		}
	}
	return nil
}

func contains(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}
