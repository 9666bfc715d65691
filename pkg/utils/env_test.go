package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "fallback", Env("VEILPOLL_TEST_UNSET", "fallback"))

	t.Setenv("VEILPOLL_TEST_SET", "value")
	assert.Equal(t, "value", Env("VEILPOLL_TEST_SET", "fallback"))
}

func TestEnvInt(t *testing.T) {
	assert.Equal(t, 7, EnvInt("VEILPOLL_TEST_UNSET", 7))

	t.Setenv("VEILPOLL_TEST_INT", "12")
	assert.Equal(t, 12, EnvInt("VEILPOLL_TEST_INT", 7))

	// Garbage and non-positive values keep the default.
	t.Setenv("VEILPOLL_TEST_INT", "twelve")
	assert.Equal(t, 7, EnvInt("VEILPOLL_TEST_INT", 7))
	t.Setenv("VEILPOLL_TEST_INT", "-3")
	assert.Equal(t, 7, EnvInt("VEILPOLL_TEST_INT", 7))
}

func TestEnvDuration(t *testing.T) {
	assert.Equal(t, 15*time.Second, EnvDuration("VEILPOLL_TEST_UNSET", 15*time.Second))

	t.Setenv("VEILPOLL_TEST_DUR", "45s")
	assert.Equal(t, 45*time.Second, EnvDuration("VEILPOLL_TEST_DUR", 15*time.Second))

	t.Setenv("VEILPOLL_TEST_DUR", "soon")
	assert.Equal(t, 15*time.Second, EnvDuration("VEILPOLL_TEST_DUR", 15*time.Second))
}
