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
)

// EventHandler serves event management endpoints for organizers plus
// the public event detail view.
type EventHandler struct {
	Events       *repository.EventRepo
	Reservations *repository.ReservationRepo
	Waitlist     *repository.WaitlistRepo
}

func NewEventHandler(e *repository.EventRepo, r *repository.ReservationRepo, w *repository.WaitlistRepo) *EventHandler {
	return &EventHandler{Events: e, Reservations: r, Waitlist: w}
}

type createEventReq struct {
	Title              string                    `json:"title"`
	Venue              string                    `json:"venue"`
	StartsAt           time.Time                 `json:"starts_at"`
	MaxTickets         uint32                    `json:"max_tickets"`
	IsPaid             bool                      `json:"is_paid"`
	FeeCents           uint32                    `json:"fee_cents"`
	AllowWaitlist      bool                      `json:"allow_waitlist"`
	RegistrationFields []model.RegistrationField `json:"registration_fields"`
}

type eventResp struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Venue         string    `json:"venue"`
	StartsAt      time.Time `json:"starts_at"`
	MaxTickets    uint32    `json:"max_tickets"`
	IsPaid        bool      `json:"is_paid"`
	FeeCents      uint32    `json:"fee_cents"`
	AllowWaitlist bool      `json:"allow_waitlist"`
	Status        string    `json:"status"`
	WaitlistSize  int       `json:"waitlist_size"`
}

func toEventResp(ev model.Event, waitlistSize int) eventResp {
	return eventResp{
		ID: ev.ID, Title: ev.Title, Venue: ev.Venue, StartsAt: ev.StartsAt,
		MaxTickets: ev.MaxTickets, IsPaid: ev.IsPaid, FeeCents: ev.FeeCents,
		AllowWaitlist: ev.AllowWaitlist, Status: ev.Status, WaitlistSize: waitlistSize,
	}
}

// Create publishes a new event owned by the calling organizer.
func (h *EventHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.MaxTickets == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_tickets must be positive"})
	}
	if req.IsPaid && req.FeeCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "paid events require fee_cents"})
	}
	for _, f := range req.RegistrationFields {
		if strings.TrimSpace(f.Name) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration fields require a name"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev := model.Event{
		Title: strings.TrimSpace(req.Title), Venue: strings.TrimSpace(req.Venue),
		StartsAt: req.StartsAt, MaxTickets: req.MaxTickets,
		IsPaid: req.IsPaid, FeeCents: req.FeeCents,
		AllowWaitlist: req.AllowWaitlist, OrganizerID: uid,
	}
	if err := h.Events.Create(ctx, &ev, req.RegistrationFields); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, toEventResp(ev, 0))
}

// Get returns the public event detail, including the current waitlist
// length so prospective attendees know what joining means.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	size, err := h.Waitlist.CountByEvent(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, toEventResp(ev, size))
}

// Fields returns the event's registration-field schema so clients can
// render the registration form.
func (h *EventHandler) Fields(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	fields, err := h.Events.RegistrationFields(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"fields": fields})
}

// Close stops an event from accepting new reservations.  Existing
// reservations are untouched.
func (h *EventHandler) Close(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Events.Close(ctx, id, uid); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.EventClosed})
}

// Delete removes the event and everything attached to it.
func (h *EventHandler) Delete(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Events.Delete(ctx, id, uid); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListReservations lists an event's reservations for its organizer.
func (h *EventHandler) ListReservations(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	if ev.OrganizerID != uid && middleware.Role(c) != model.RoleStaff {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	list, err := h.Reservations.ListByEvent(ctx, id)
	if err != nil {
		return jsonError(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}
