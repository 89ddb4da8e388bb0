package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJSONErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: field %q is required", service.ErrInvalidInput, "tshirt"), http.StatusBadRequest},
		{repository.ErrSignatureMismatch, http.StatusUnauthorized},
		{repository.ErrForbidden, http.StatusForbidden},
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrCapacityExceeded, http.StatusConflict},
		{repository.ErrEventClosed, http.StatusConflict},
		{repository.ErrInvalidTransition, http.StatusConflict},
		{repository.ErrAlreadyCheckedIn, http.StatusConflict},
		{repository.ErrNotConfirmed, http.StatusConflict},
		{repository.ErrWrongEvent, http.StatusConflict},
		{repository.ErrConflict, http.StatusServiceUnavailable},
		{fmt.Errorf("driver: bad connection"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, rec := newTestContext(t)
		require.NoError(t, jsonError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}

func TestJSONErrorConflictSetsRetryAfter(t *testing.T) {
	c, rec := newTestContext(t)
	require.NoError(t, jsonError(c, repository.ErrConflict))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestParamID(t *testing.T) {
	c, _ := newTestContext(t)
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := paramID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	c.SetParamValues("not-a-number")
	_, err = paramID(c, "id")
	assert.Error(t, err)
}
