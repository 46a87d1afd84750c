package utils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrSetDefault(t *testing.T) {
	t.Setenv("PORTAL_TEST_VALUE", "")

	assert.Equal(t, "fallback", GetEnvOrSetDefault("PORTAL_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", os.Getenv("PORTAL_TEST_VALUE"))

	t.Setenv("PORTAL_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrSetDefault("PORTAL_TEST_VALUE", "fallback"))
}

func TestTypedEnvHelpers(t *testing.T) {
	t.Setenv("PORTAL_TEST_INT", "12")
	t.Setenv("PORTAL_TEST_BAD_INT", "twelve")
	t.Setenv("PORTAL_TEST_DURATION", "1500ms")
	t.Setenv("PORTAL_TEST_BOOL", "true")

	assert.Equal(t, 12, GetEnvInt("PORTAL_TEST_INT", 3))
	assert.Equal(t, 3, GetEnvInt("PORTAL_TEST_BAD_INT", 3))
	assert.Equal(t, 1500*time.Millisecond, GetEnvDuration("PORTAL_TEST_DURATION", time.Second))
	assert.True(t, GetEnvBool("PORTAL_TEST_BOOL", false))

	t.Setenv("PORTAL_TEST_UNSET_BOOL", "")
	assert.False(t, GetEnvBool("PORTAL_TEST_UNSET_BOOL", false))
}

func TestIsOnOrBeforeDate(t *testing.T) {
	limit := time.Date(2024, time.November, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsOnOrBeforeDate(time.Date(2024, time.November, 14, 23, 0, 0, 0, time.UTC), limit))
	assert.True(t, IsOnOrBeforeDate(time.Date(2024, time.November, 15, 23, 59, 59, 0, time.UTC), limit))
	assert.False(t, IsOnOrBeforeDate(time.Date(2024, time.November, 16, 0, 0, 0, 0, time.UTC), limit))
}

func TestIsWithInRange(t *testing.T) {
	from := time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	assert.True(t, IsWithInRange(from, from, to))
	assert.True(t, IsWithInRange(to, from, to))
	assert.False(t, IsWithInRange(to.Add(time.Second), from, to))
}
