// Package router maps the HTTP surface onto handlers and decides
// which middleware guards each group: public browse routes get the
// response cache, authenticated groups get JWT validation plus role
// gates, and everything shares the rate limiter installed in main.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// Handlers collects every handler the router wires.
type Handlers struct {
	Auth        *handler.AuthHandler
	Event       *handler.EventHandler
	Reservation *handler.ReservationHandler
	Payment     *handler.PaymentHandler
	CheckIn     *handler.CheckInHandler
}

// Register wires all routes.  rdb may be nil, which disables the
// response cache on public reads.
func Register(e *echo.Echo, h Handlers, db *sql.DB, rdb *redis.Client, jwtSecret string) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))

	// Auth: register/login/refresh/logout need no session.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)
	e.GET("/v1/me", h.Auth.Me, middleware.JWTAuth(jwtSecret))
	e.POST("/v1/logout", h.Auth.Logout, middleware.JWTAuth(jwtSecret))

	// Public reads: event detail and registration schema, cached.
	pub := e.Group("/v1", middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	pub.GET("/events/:id", h.Event.Get)
	pub.GET("/events/:id/fields", h.Event.Fields)

	// Gateway callback: unauthenticated, verified by HMAC signature.
	e.POST("/v1/payments/callback", h.Payment.Callback)

	// Attendee routes.  Any authenticated role can hold tickets;
	// organizers and staff attend events too.
	att := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAttendee, model.RoleOrganizer, model.RoleStaff),
	)
	att.POST("/events/:id/reservations", h.Reservation.Reserve)
	att.GET("/my-reservations", h.Reservation.Mine)
	att.GET("/reservations/:ticket_id", h.Reservation.Get)
	att.DELETE("/reservations/:ticket_id", h.Reservation.Cancel)
	att.POST("/reservations/:ticket_id/payment", h.Payment.Initiate)
	att.POST("/reservations/:ticket_id/refund", h.Payment.Refund)
	att.GET("/my-payments", h.Payment.Mine)
	att.GET("/my-payments/:txn_id", h.Payment.Get)

	// Organizer routes: event management.
	org := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer),
	)
	org.POST("/events", h.Event.Create)
	org.POST("/events/:id/close", h.Event.Close)
	org.DELETE("/events/:id", h.Event.Delete)

	// Organizer or staff: attendee lists and gate operations.
	gate := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer, model.RoleStaff),
	)
	gate.GET("/events/:id/reservations", h.Event.ListReservations)
	gate.POST("/events/:id/checkins", h.CheckIn.CheckIn)
	gate.GET("/events/:id/checkins/stats", h.CheckIn.Stats)
}
