package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's id as stored by
// JWTAuth, or "anon" for unauthenticated requests.  Rate-limit keys
// use it so authenticated traffic is bucketed per user rather than per
// client address alone.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(uint64); ok {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}

// UserID extracts the authenticated user's id from the context.  It is
// only meaningful on routes wrapped by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get("user_id").(uint64)
	return v, ok
}

// Role returns the authenticated user's role claim, or "".
func Role(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}
