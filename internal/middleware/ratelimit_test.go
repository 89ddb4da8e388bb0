package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
)

func rateContext(userID any) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/1/reservations", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.5")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events/:id/reservations")
	if userID != nil {
		c.Set("user_id", userID)
	}
	return c
}

func TestBuildRateKeyStrategies(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	c := rateContext(uint64(42))

	key := buildRateKey(cfg, c)
	assert.Contains(t, key, "ip:10.0.0.5")
	assert.Contains(t, key, "user:42")
	assert.Contains(t, key, "POST /v1/events/:id/reservations")

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:42", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.5", buildRateKey(cfg, c))
}

func TestBuildRateKeyAnonymousUser(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, rateContext(nil)))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(3), asInt64(3.0))
	assert.Equal(t, int64(3), asInt64("3"))
	assert.Equal(t, int64(0), asInt64("nope"))
	assert.Equal(t, int64(0), asInt64(nil))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: false, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Second, TTL: time.Minute,
	}
	c := rateContext(uint64(42))
	called := false
	err := NewTokenBucket(cfg, nil)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, called)
}
