package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout and polling values.
// These values can be customized via environment variables.
type Timeouts struct {
	ServerCreate       time.Duration // Timeout for server creation actions
	Delete             time.Duration // Timeout for delete actions
	DialTimeout        time.Duration // Timeout for a single SSH dial
	SSHProbeAttempts   int           // Reachability probes per bring-up attempt
	SSHProbeInterval   time.Duration // Pause between reachability probes
	TaskWaitIterations int           // Polls while waiting for stack tasks
	TaskWaitInterval   time.Duration // Pause between task polls
	AppWaitIterations  int           // Polls while waiting for application health
	AppWaitInterval    time.Duration // Pause between health polls
	DeployRetryDelay   time.Duration // Pause between failed stack deploys
	RetryMaxAttempts   int           // Maximum number of cloud API retry attempts
	RetryInitialDelay  time.Duration // Initial delay between cloud API retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - STAGEHAND_TIMEOUT_SERVER_CREATE (default: 10m)
//   - STAGEHAND_TIMEOUT_DELETE (default: 5m)
//   - STAGEHAND_TIMEOUT_DIAL (default: 10s)
//   - STAGEHAND_SSH_PROBE_ATTEMPTS (default: 40)
//   - STAGEHAND_SSH_PROBE_INTERVAL (default: 15s)
//   - STAGEHAND_TASK_WAIT_ITERATIONS (default: 100)
//   - STAGEHAND_TASK_WAIT_INTERVAL (default: 1s)
//   - STAGEHAND_APP_WAIT_ITERATIONS (default: 100)
//   - STAGEHAND_APP_WAIT_INTERVAL (default: 1s)
//   - STAGEHAND_DEPLOY_RETRY_DELAY (default: 1s)
//   - STAGEHAND_RETRY_MAX_ATTEMPTS (default: 5)
//   - STAGEHAND_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:       parseDuration("STAGEHAND_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		Delete:             parseDuration("STAGEHAND_TIMEOUT_DELETE", 5*time.Minute),
		DialTimeout:        parseDuration("STAGEHAND_TIMEOUT_DIAL", 10*time.Second),
		SSHProbeAttempts:   parseInt("STAGEHAND_SSH_PROBE_ATTEMPTS", 40),
		SSHProbeInterval:   parseDuration("STAGEHAND_SSH_PROBE_INTERVAL", 15*time.Second),
		TaskWaitIterations: parseInt("STAGEHAND_TASK_WAIT_ITERATIONS", 100),
		TaskWaitInterval:   parseDuration("STAGEHAND_TASK_WAIT_INTERVAL", time.Second),
		AppWaitIterations:  parseInt("STAGEHAND_APP_WAIT_ITERATIONS", 100),
		AppWaitInterval:    parseDuration("STAGEHAND_APP_WAIT_INTERVAL", time.Second),
		DeployRetryDelay:   parseDuration("STAGEHAND_DEPLOY_RETRY_DELAY", time.Second),
		RetryMaxAttempts:   parseInt("STAGEHAND_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:  parseDuration("STAGEHAND_RETRY_INITIAL_DELAY", time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set, not positive or parsing fails, the default
// value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}

	return d
}

// parseInt parses a positive integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}

	return i
}
