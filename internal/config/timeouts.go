package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable polling intervals and ceilings.
// These values can be customized via environment variables.
type Timeouts struct {
	RunningInterval   time.Duration // Poll interval for instance running state
	RunningAttempts   int           // Max attempts for instance running state
	ReachableInterval time.Duration // Poll interval for SSH reachability
	ReachableAttempts int           // Max attempts for SSH reachability
	ImageInterval     time.Duration // Poll interval for image availability
	ImageAttempts     int           // Max attempts for image availability
	HealthInterval    time.Duration // Poll interval for target health
	HealthAttempts    int           // Max attempts for target health
	StackWait         time.Duration // Ceiling for stack convergence
	StackPollInterval time.Duration // Poll interval for stack status
	SettleDelay       time.Duration // Flat delay between running state and health polling
	Delete            time.Duration // Ceiling for delete operations
	RetryMaxAttempts  int           // Max attempts for transient API retries
	RetryInitialDelay time.Duration // Initial delay for transient API retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PSFORGE_POLL_RUNNING_INTERVAL (default: 10s)
//   - PSFORGE_POLL_RUNNING_ATTEMPTS (default: 30)
//   - PSFORGE_POLL_REACHABLE_INTERVAL (default: 10s)
//   - PSFORGE_POLL_REACHABLE_ATTEMPTS (default: 30)
//   - PSFORGE_POLL_IMAGE_INTERVAL (default: 15s)
//   - PSFORGE_POLL_IMAGE_ATTEMPTS (default: 80)
//   - PSFORGE_POLL_HEALTH_INTERVAL (default: 10s)
//   - PSFORGE_POLL_HEALTH_ATTEMPTS (default: 30)
//   - PSFORGE_TIMEOUT_STACK (default: 20m)
//   - PSFORGE_POLL_STACK_INTERVAL (default: 15s)
//   - PSFORGE_SETTLE_DELAY (default: 30s)
//   - PSFORGE_TIMEOUT_DELETE (default: 10m)
//   - PSFORGE_RETRY_MAX_ATTEMPTS (default: 5)
//   - PSFORGE_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		RunningInterval:   parseDuration("PSFORGE_POLL_RUNNING_INTERVAL", 10*time.Second),
		RunningAttempts:   parseInt("PSFORGE_POLL_RUNNING_ATTEMPTS", 30),
		ReachableInterval: parseDuration("PSFORGE_POLL_REACHABLE_INTERVAL", 10*time.Second),
		ReachableAttempts: parseInt("PSFORGE_POLL_REACHABLE_ATTEMPTS", 30),
		ImageInterval:     parseDuration("PSFORGE_POLL_IMAGE_INTERVAL", 15*time.Second),
		ImageAttempts:     parseInt("PSFORGE_POLL_IMAGE_ATTEMPTS", 80),
		HealthInterval:    parseDuration("PSFORGE_POLL_HEALTH_INTERVAL", 10*time.Second),
		HealthAttempts:    parseInt("PSFORGE_POLL_HEALTH_ATTEMPTS", 30),
		StackWait:         parseDuration("PSFORGE_TIMEOUT_STACK", 20*time.Minute),
		StackPollInterval: parseDuration("PSFORGE_POLL_STACK_INTERVAL", 15*time.Second),
		SettleDelay:       parseDuration("PSFORGE_SETTLE_DELAY", 30*time.Second),
		Delete:            parseDuration("PSFORGE_TIMEOUT_DELETE", 10*time.Minute),
		RetryMaxAttempts:  parseInt("PSFORGE_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("PSFORGE_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
