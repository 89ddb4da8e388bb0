package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// CheckInHandler serves the gate: ticket verification and per-event
// attendance stats.
type CheckInHandler struct {
	Booking  *service.BookingService
	Events   *repository.EventRepo
	CheckIns *repository.CheckInRepo
}

func NewCheckInHandler(b *service.BookingService, e *repository.EventRepo, ci *repository.CheckInRepo) *CheckInHandler {
	return &CheckInHandler{Booking: b, Events: e, CheckIns: ci}
}

type checkInReq struct {
	TicketID string `json:"ticket_id"`
	Method   string `json:"method"` // QRCODE | MANUAL | APP
	Notes    string `json:"notes"`
}

// CheckIn consumes a ticket at the event gate.  The scanning staff
// member is recorded as the operator.
func (h *CheckInHandler) CheckIn(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_id required"})
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	var notes *string
	if s := strings.TrimSpace(req.Notes); s != "" {
		notes = &s
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Booking.CheckIn(ctx, req.TicketID, eventID, method, &uid, notes)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// Stats returns the attendance counters for an event: how many tickets
// are eligible, consumed and still expected, plus the latest scans.
func (h *CheckInHandler) Stats(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// All-zero counters for an unknown event would be misleading.
	ok, err := h.Events.Exists(ctx, eventID)
	if err != nil {
		return jsonError(c, err)
	}
	if !ok {
		return jsonError(c, repository.ErrNotFound)
	}

	stats, err := h.CheckIns.Stats(ctx, eventID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
