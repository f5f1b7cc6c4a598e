package infra

import (
	"time"

	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/util/retry"
)

// Defaults of the per-node procedure.
const (
	DefaultAttempts      = 5
	DefaultProbeAttempts = 40
	DefaultProbeInterval = 15 * time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAttempts sets how many bring-up attempts each node gets.
func WithAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithRecreate destroys existing infrastructure on the first attempt too.
func WithRecreate(recreate bool) Option {
	return func(o *Orchestrator) {
		o.recreate = recreate
	}
}

// WithProbes sets the reachability bound and the pause between probes.
func WithProbes(attempts int, interval time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.probeAttempts = attempts
		}
		if interval >= 0 {
			o.probeInterval = interval
		}
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
func WithMetrics(m *provisioning.Metrics, provider string) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		o.provider = provider
	}
}
