package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "value")
	t.Setenv("X_BOOL", "true")
	t.Setenv("X_INT", "42")
	t.Setenv("X_DUR", "750ms")

	assert.Equal(t, "value", envStr("X_STR", "fallback"))
	assert.Equal(t, "fallback", envStr("X_MISSING", "fallback"))
	assert.True(t, envBool("X_BOOL", false))
	assert.False(t, envBool("X_MISSING", false))
	assert.Equal(t, 42, envInt("X_INT", 1))
	assert.Equal(t, 1, envInt("X_MISSING", 1))
	assert.Equal(t, 750*time.Millisecond, envDur("X_DUR", time.Second))
	assert.Equal(t, time.Second, envDur("X_MISSING", time.Second))
}

func TestLoadRateLimitConfigClampsDegenerateValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "0")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.GreaterOrEqual(t, cfg.TTL, 5*cfg.RefillInterval)
}

func TestParseMethods(t *testing.T) {
	m := parseMethods("get, head ,POST")
	assert.True(t, m["GET"])
	assert.True(t, m["HEAD"])
	assert.True(t, m["POST"])
	assert.False(t, m["DELETE"])
}
