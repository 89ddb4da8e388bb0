// Package handler exposes the HTTP surface of the ticketing service.
// Handlers bind and validate request bodies, delegate to the service
// and repository layers and translate the error taxonomy into HTTP
// responses.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// jsonError maps the error taxonomy onto HTTP responses.  Lifecycle
// and capacity rejects come back 409 so clients can tell "don't retry
// this" (the body says why) from 503, which marks exhausted
// serialization retries where the same request may succeed shortly.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSignatureMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature mismatch"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrEventClosed),
		errors.Is(err, repository.ErrNotConfirmed),
		errors.Is(err, repository.ErrWrongEvent),
		errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporary conflict, retry"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
