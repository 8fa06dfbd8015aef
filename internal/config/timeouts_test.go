package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.ReachableInterval)
	assert.Equal(t, 30, timeouts.ReachableAttempts)
	assert.Equal(t, 15*time.Second, timeouts.ImageInterval)
	assert.Equal(t, 80, timeouts.ImageAttempts)
	assert.Equal(t, 10*time.Second, timeouts.HealthInterval)
	assert.Equal(t, 30, timeouts.HealthAttempts)
	assert.Equal(t, 20*time.Minute, timeouts.StackWait)
	assert.Equal(t, 30*time.Second, timeouts.SettleDelay)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}

func TestLoadTimeouts_EnvVars(t *testing.T) {
	t.Setenv("PSFORGE_POLL_HEALTH_INTERVAL", "2s")
	t.Setenv("PSFORGE_POLL_HEALTH_ATTEMPTS", "7")
	t.Setenv("PSFORGE_TIMEOUT_STACK", "45m")

	timeouts := LoadTimeouts()

	assert.Equal(t, 2*time.Second, timeouts.HealthInterval)
	assert.Equal(t, 7, timeouts.HealthAttempts)
	assert.Equal(t, 45*time.Minute, timeouts.StackWait)
}

func TestLoadTimeouts_InvalidEnvVarsFallBack(t *testing.T) {
	t.Setenv("PSFORGE_POLL_HEALTH_INTERVAL", "soon")
	t.Setenv("PSFORGE_POLL_HEALTH_ATTEMPTS", "several")

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.HealthInterval)
	assert.Equal(t, 30, timeouts.HealthAttempts)
}
