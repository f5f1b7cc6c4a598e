package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/result"
	"github.com/imamik/stagehand/internal/util/retry"
)

// Orchestrator brings up and configures the virtual machine nodes of a
// configuration.
type Orchestrator struct {
	cfg   *config.Configuration
	infra provisioning.Infrastructure
	exec  provisioning.RemoteExecutor

	attempts      int
	recreate      bool
	probeAttempts int
	probeInterval time.Duration
	sleep         retry.Sleeper
	observer      provisioning.Observer
	metrics       *provisioning.Metrics
	provider      string

	outcomes []provisioning.Outcome
}

// New creates an orchestrator for cfg.
func New(cfg *config.Configuration, infra provisioning.Infrastructure, exec provisioning.RemoteExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:           cfg,
		infra:         infra,
		exec:          exec,
		attempts:      DefaultAttempts,
		probeAttempts: DefaultProbeAttempts,
		probeInterval: DefaultProbeInterval,
		sleep:         retry.Sleep,
		observer:      provisioning.NewConsoleObserver(),
		provider:      string(cfg.Provider),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state threaded through the nodes of one Up call.
type run struct {
	settings *netsettings.Settings
	outcomes []provisioning.Outcome
}

// Outcomes returns the per-node results of the last Up call.
func (o *Orchestrator) Outcomes() []provisioning.Outcome {
	return append([]provisioning.Outcome(nil), o.outcomes...)
}

// Up converges nodes one at a time and stores the network settings once all
// of them were processed. It returns nil only when every node succeeded.
func (o *Orchestrator) Up(ctx context.Context, nodes []string) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: no nodes to bring up", provisioning.ErrSelection)
	}

	settingsFile := o.cfg.NetworkSettingsFile()
	settings, err := netsettings.LoadOrNew(settingsFile)
	if err != nil {
		return err
	}

	acc := &run{settings: settings}
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			acc.outcomes = append(acc.outcomes, provisioning.Outcome{
				Node:  node,
				State: provisioning.NodeFailed,
				Err:   fmt.Errorf("node %s: %w", node, err),
			})
			continue
		}
		outcome := o.bringUpAndConfigure(ctx, acc, node)
		o.metrics.RecordOutcome(o.provider, outcome)
		acc.outcomes = append(acc.outcomes, outcome)
	}
	o.outcomes = acc.outcomes

	var errs []error
	for _, outcome := range acc.outcomes {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}
	if err := acc.settings.Store(settingsFile); err != nil {
		errs = append(errs, err)
	}
	o.observer.Printf("[Up] Network settings written to %s", settingsFile)

	return errors.Join(errs...)
}

// bringUpAndConfigure runs the attempt loop of a single node.
func (o *Orchestrator) bringUpAndConfigure(ctx context.Context, acc *run, node string) provisioning.Outcome {
	start := time.Now()
	obs := o.observer.WithFields(map[string]string{"node": node})
	outcome := provisioning.Outcome{Node: node, State: provisioning.NodeNotRunning}

	finish := func(state provisioning.NodeState, err error) provisioning.Outcome {
		outcome.State = state
		outcome.Err = err
		outcome.Duration = time.Since(start)
		if err != nil {
			obs.Event(provisioning.Event{
				Type:     provisioning.EventNodeFailed,
				Phase:    "bring-up",
				Resource: node,
				Message:  fmt.Sprintf("node %s was not configured", node),
				Err:      err,
			})
		} else {
			obs.Event(provisioning.Event{
				Type:     provisioning.EventNodeConfigured,
				Phase:    "bring-up",
				Resource: node,
				Message:  fmt.Sprintf("node %s has been configured", node),
			})
		}
		return outcome
	}

	var lastErr error
	for attempt := 0; attempt < o.attempts; attempt++ {
		outcome.Attempts = attempt + 1
		o.metrics.RecordAttempt(o.provider, node)
		obs.Event(provisioning.Event{
			Type:     provisioning.EventNodeAttempt,
			Phase:    "bring-up",
			Resource: node,
			Message:  fmt.Sprintf("Bring up and configure node %s. Attempt %d.", node, attempt+1),
		})

		if err := o.bringUpNode(ctx, obs, attempt, node); err != nil {
			return finish(provisioning.NodeFailed, err)
		}

		running, err := o.infra.IsRunning(ctx, node)
		if err != nil {
			lastErr = fmt.Errorf("%w: node %s: %w", provisioning.ErrInfrastructure, node, err)
			obs.Printf("[Up] Unable to determine whether %s is running: %v", node, err)
			continue
		}
		if !running {
			lastErr = fmt.Errorf("%w: node %s is not running", provisioning.ErrInfrastructure, node)
			continue
		}
		outcome.State = provisioning.NodeRunning

		res := o.configureNode(ctx, acc, obs, node, &outcome)
		if res.IsOk() {
			return finish(provisioning.NodeVerified, nil)
		}
		lastErr = res.Err()
		obs.Printf("[Up] Exception during node configuration: %v", lastErr)

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempt was made")
	}
	return finish(provisioning.NodeFailed,
		fmt.Errorf("node %s was not configured after %d attempts: %w", node, outcome.Attempts, lastErr))
}

// bringUpNode destroys and recreates the node on retries or when recreation
// was requested, and otherwise only applies it when it is not running yet.
// Only a failing apply is reported; destroy failures are logged.
func (o *Orchestrator) bringUpNode(ctx context.Context, obs provisioning.Observer, attempt int, node string) error {
	if o.recreate || attempt > 0 {
		obs.Printf("[Up] Destroying '%s' node.", node)
		if err := o.infra.Destroy(ctx, node); err != nil {
			obs.Printf("[Up] Failed to destroy %s, continuing: %v", node, err)
		}
		return o.applyNode(ctx, obs, node)
	}

	running, err := o.infra.IsRunning(ctx, node)
	if err == nil && running {
		obs.Event(provisioning.Event{
			Type:     provisioning.EventResourceExists,
			Phase:    "bring-up",
			Resource: node,
			Message:  "reusing running node",
		})
		return nil
	}
	return o.applyNode(ctx, obs, node)
}

func (o *Orchestrator) applyNode(ctx context.Context, obs provisioning.Observer, node string) error {
	obs.Event(provisioning.Event{
		Type:     provisioning.EventResourceCreating,
		Phase:    "bring-up",
		Resource: node,
		Message:  fmt.Sprintf("Bringing up node %s", node),
	})
	if err := o.infra.Apply(ctx, node); err != nil {
		return fmt.Errorf("%w: failed to apply node %s: %w", provisioning.ErrInfrastructure, node, err)
	}
	return nil
}

// configureNode discovers the node's addresses, waits for it to answer,
// records the responding address and provisions it. When any step fails the
// best known record is kept in the settings for the next attempt.
func (o *Orchestrator) configureNode(ctx context.Context, acc *run, obs provisioning.Observer, node string, outcome *provisioning.Outcome) result.Result[netsettings.Record] {
	var discovered *netsettings.Record

	res := o.retrieveNetworkSettings(ctx, obs, node).AndThen(func(rec netsettings.Record) result.Result[netsettings.Record] {
		discovered = &rec
		return o.waitForNodeAvailability(ctx, obs, node, rec)
	}).AndThen(func(rec netsettings.Record) result.Result[netsettings.Record] {
		discovered = &rec
		acc.settings.Add(node, rec)
		outcome.State = provisioning.NodeNetworkKnown
		return o.configureWithChef(ctx, obs, node, rec, outcome)
	})

	res.Match(
		func(netsettings.Record) {
			obs.Printf("[Up] Node '%s' has been configured.", node)
		},
		func(error) {
			if discovered != nil {
				acc.settings.Add(node, *discovered)
			}
		},
	)
	return res
}

// retrieveNetworkSettings normalizes the infrastructure's view of the node.
func (o *Orchestrator) retrieveNetworkSettings(ctx context.Context, obs provisioning.Observer, node string) result.Result[netsettings.Record] {
	obs.Printf("[Up] Generating network configuration for node '%s'", node)
	network, err := o.infra.ResourceNetwork(ctx, node)
	if err != nil {
		return result.Err[netsettings.Record](fmt.Errorf("%w: network of node %s: %w", provisioning.ErrInfrastructure, node, err))
	}
	return result.Ok(network.Record())
}
