package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// PaymentHandler serves payment initiation, the gateway callback and
// refunds.
type PaymentHandler struct {
	Booking  *service.BookingService
	Payments *repository.PaymentRepo
}

func NewPaymentHandler(b *service.BookingService, p *repository.PaymentRepo) *PaymentHandler {
	return &PaymentHandler{Booking: b, Payments: p}
}

type initiatePaymentReq struct {
	AmountCents uint32 `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type refundReq struct {
	Reason string `json:"reason"`
}

type paymentResp struct {
	TxnID       string     `json:"txn_id"`
	AmountCents uint32     `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPaymentResp(p model.Payment) paymentResp {
	return paymentResp{
		TxnID: p.TxnID, AmountCents: p.AmountCents, Currency: p.Currency,
		Status: p.Status, CompletedAt: p.CompletedAt, CreatedAt: p.CreatedAt,
	}
}

// Initiate opens a payment intent for the caller's PENDING reservation
// and returns the transaction id the gateway callback must echo back.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID := c.Param("ticket_id")
	var req initiatePaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AmountCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Booking.InitiatePayment(ctx, ticketID, uid, req.AmountCents, currency)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, toPaymentResp(p))
}

// Callback receives the gateway's asynchronous reconciliation.  It is
// unauthenticated; the HMAC signature on the payload is the only thing
// trusted.  Replays of a completed transaction are acknowledged with
// 200 so the gateway stops retrying.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var cb service.PaymentCallback
	if err := c.Bind(&cb); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if cb.TxnID == "" || cb.Signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "txn_id and signature required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Booking.HandlePaymentCallback(ctx, cb); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
}

// Refund reverses a completed payment and releases the ticket.
// Organizers may also refund tickets on events they organize.
func (h *PaymentHandler) Refund(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID := c.Param("ticket_id")
	var req refundReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason required"})
	}
	admin := middleware.Role(c) == model.RoleOrganizer

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Booking.Refund(ctx, ticketID, strings.TrimSpace(req.Reason), uid, admin); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.PaymentRefunded})
}

// Get returns one of the caller's payments by transaction id, for
// polling the outcome of an initiated payment.
func (h *PaymentHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payments.GetByTxnID(ctx, c.Param("txn_id"), uid)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResp(p))
}

// Mine lists the caller's payments.
func (h *PaymentHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Payments.ListByHolder(ctx, uid)
	if err != nil {
		return jsonError(c, err)
	}
	out := make([]paymentResp, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": out})
}
