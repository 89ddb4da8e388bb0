package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// ReservationHandler serves the attendee-facing ticket endpoints.
type ReservationHandler struct {
	Booking      *service.BookingService
	Reservations *repository.ReservationRepo
	Waitlist     *repository.WaitlistRepo
	CheckIns     *repository.CheckInRepo
}

func NewReservationHandler(b *service.BookingService, r *repository.ReservationRepo, w *repository.WaitlistRepo, ci *repository.CheckInRepo) *ReservationHandler {
	return &ReservationHandler{Booking: b, Reservations: r, Waitlist: w, CheckIns: ci}
}

type checkInPart struct {
	Method     string    `json:"method"`
	OperatorID *uint64   `json:"operator_id,omitempty"`
	At         time.Time `json:"at"`
}

type reservationResp struct {
	TicketID         string            `json:"ticket_id"`
	EventID          uint64            `json:"event_id"`
	HolderName       string            `json:"holder_name"`
	HolderEmail      string            `json:"holder_email"`
	GuestName        *string           `json:"guest_name,omitempty"`
	AdditionalInfo   map[string]string `json:"additional_info,omitempty"`
	Status           string            `json:"status"`
	CheckedInAt      *time.Time        `json:"checked_in_at,omitempty"`
	CheckIn          *checkInPart      `json:"check_in,omitempty"`
	WaitlistPosition int               `json:"waitlist_position,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toReservationResp(r model.Reservation) reservationResp {
	return reservationResp{
		TicketID: r.TicketID, EventID: r.EventID,
		HolderName: r.HolderName, HolderEmail: r.HolderEmail,
		GuestName: r.GuestName, AdditionalInfo: r.AdditionalInfo,
		Status: string(r.Status), CheckedInAt: r.CheckedInAt,
		CreatedAt: r.CreatedAt,
	}
}

// Reserve issues a ticket for the event, or joins its waitlist when
// the event is full and allows one.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var info model.HolderInfo
	if err := c.Bind(&info); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Booking.Reserve(ctx, eventID, uid, info)
	if err != nil {
		return jsonError(c, err)
	}

	out := toReservationResp(res)
	if res.Status == model.StatusWaitlisted {
		if pos, err := h.Waitlist.Position(ctx, res.ID); err == nil {
			out.WaitlistPosition = pos
		}
	}
	return c.JSON(http.StatusCreated, out)
}

// Mine lists the caller's reservations across all events.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Reservations.ListByHolder(ctx, uid)
	if err != nil {
		return jsonError(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Get returns one reservation by ticket id.  Only the holder, the
// event's organizer or staff may look a ticket up.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ticketID := c.Param("ticket_id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.GetByTicketID(ctx, ticketID)
	if err != nil {
		return jsonError(c, err)
	}
	role := middleware.Role(c)
	if res.HolderID != uid && role != model.RoleStaff && role != model.RoleOrganizer {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	out := toReservationResp(res)
	switch res.Status {
	case model.StatusWaitlisted:
		if pos, err := h.Waitlist.Position(ctx, res.ID); err == nil {
			out.WaitlistPosition = pos
		}
	case model.StatusCheckedIn:
		// A consumed ticket shows how and by whom it was consumed.
		if ci, err := h.CheckIns.GetByReservation(ctx, res.ID); err == nil {
			out.CheckIn = &checkInPart{Method: ci.Method, OperatorID: ci.OperatorID, At: ci.CheckedInAt}
		}
	}
	return c.JSON(http.StatusOK, out)
}

// Cancel releases the caller's reservation.  Organizers may also
// cancel reservations on events they organize.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ticketID := c.Param("ticket_id")
	admin := middleware.Role(c) == model.RoleOrganizer

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Booking.Cancel(ctx, ticketID, uid, admin); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusCancelled})
}
