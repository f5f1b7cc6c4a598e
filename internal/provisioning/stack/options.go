package stack

import (
	"time"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/util/retry"
)

// Defaults of a stack run.
const (
	DefaultAttempts       = 1
	DefaultDeployDelay    = time.Second
	DefaultWaitIterations = 100
	DefaultWaitInterval   = time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAttempts sets how many times a failed deploy is retried.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.attempts = n
		}
	}
}

// WithRecreate removes the stack before deploying it.
func WithRecreate(recreate bool) Option {
	return func(o *Orchestrator) {
		o.recreate = recreate
	}
}

// WithTimeouts takes the wait bounds and cadence from t.
func WithTimeouts(t config.Timeouts) Option {
	return func(o *Orchestrator) {
		o.deployDelay = t.DeployRetryDelay
		o.taskIterations = t.TaskWaitIterations
		o.taskInterval = t.TaskWaitInterval
		o.appIterations = t.AppWaitIterations
		o.appInterval = t.AppWaitInterval
	}
}

// WithProbeTable replaces the application health probes.
func WithProbeTable(t ProbeTable) Option {
	return func(o *Orchestrator) {
		o.probes = t
	}
}

// WithSleeper replaces the pause implementation.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

// WithObserver sets the output sink.
func WithObserver(obs provisioning.Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithMetrics sets the run counters.
func WithMetrics(m *provisioning.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}
