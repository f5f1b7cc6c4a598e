package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/result"
	"github.com/imamik/stagehand/internal/util/naming"
	"github.com/imamik/stagehand/internal/util/retry"
)

// Orchestrator brings up the container nodes of a configuration.
type Orchestrator struct {
	cfg     *config.Configuration
	runtime provisioning.ContainerRuntime

	attempts       int
	recreate       bool
	deployDelay    time.Duration
	taskIterations int
	taskInterval   time.Duration
	appIterations  int
	appInterval    time.Duration
	probes         ProbeTable
	sleep          retry.Sleeper
	observer       provisioning.Observer
	metrics        *provisioning.Metrics

	tasks []*Task
}

// New creates an orchestrator for cfg.
func New(cfg *config.Configuration, runtime provisioning.ContainerRuntime, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:            cfg,
		runtime:        runtime,
		attempts:       DefaultAttempts,
		deployDelay:    DefaultDeployDelay,
		taskIterations: DefaultWaitIterations,
		taskInterval:   DefaultWaitInterval,
		appIterations:  DefaultWaitIterations,
		appInterval:    DefaultWaitInterval,
		probes:         NewProbeTable(),
		sleep:          retry.Sleep,
		observer:       provisioning.NewConsoleObserver(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tasks returns a snapshot of the tasks tracked by the last Configure call.
func (o *Orchestrator) Tasks() []Task {
	out := make([]Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, *t)
	}
	return out
}

// Configure deploys the selected services and records how to reach them.
func (o *Orchestrator) Configure(ctx context.Context) error {
	start := time.Now()
	stack := o.cfg.StackName()
	provisioning.LogPhaseStart(o.observer, "stack", stack)

	services, err := o.selectServices()
	if err == nil {
		err = o.deploy(ctx, stack)
	}
	if err == nil {
		err = o.waitForTasks(ctx, stack, services)
	}
	if err == nil {
		err = o.waitForApplications(ctx)
	}
	if err == nil {
		err = o.attachBridge(ctx, naming.BridgeNetwork(stack))
	}
	if err == nil {
		err = o.storeNetworkSettings(services)
	}
	o.recordOutcomes(services, time.Since(start), err)

	if err != nil {
		provisioning.LogPhaseFailed(o.observer, "stack", stack, err)
		return err
	}
	provisioning.LogPhaseComplete(o.observer, "stack", stack, time.Since(start))
	return nil
}

// selectServices narrows the stack definition to the requested nodes and
// writes the partial definition that gets deployed.
func (o *Orchestrator) selectServices() ([]string, error) {
	o.observer.Printf("[Stack] Selecting services to be brought up")
	def, err := LoadDefinition(o.cfg.DockerConfigurationFile())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provisioning.ErrConfiguration, err)
	}

	partial := def.Select(o.cfg.NodeNames())
	services := partial.ServiceNames()
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: no stack services match the requested nodes", provisioning.ErrSelection)
	}
	if err := partial.Store(o.cfg.DockerPartialConfigurationFile()); err != nil {
		return nil, err
	}
	o.observer.Printf("[Stack] Services to bring up: %s", strings.Join(services, ", "))
	return services, nil
}

// deploy optionally removes the old stack, ensures the bridge network and
// deploys the partial definition, retrying failed deploys.
func (o *Orchestrator) deploy(ctx context.Context, stack string) error {
	if o.recreate {
		o.observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceDeleting,
			Phase:    "stack",
			Resource: stack,
			Message:  fmt.Sprintf("Removing stack %s", stack),
		})
		if err := o.runtime.DestroyStack(ctx, stack); err != nil {
			o.observer.Printf("[Stack] Failed to remove stack %s, continuing: %v", stack, err)
		}
	}

	bridge := naming.BridgeNetwork(stack)
	if err := o.runtime.CreateBridgeNetwork(ctx, bridge); err != nil {
		return fmt.Errorf("%w: failed to create network %s: %w", provisioning.ErrInfrastructure, bridge, err)
	}

	file := o.cfg.DockerPartialConfigurationFile()
	err := retry.WithExponentialBackoff(ctx, func() error {
		o.metrics.RecordDeploy()
		o.observer.Event(provisioning.Event{
			Type:     provisioning.EventResourceCreating,
			Phase:    "stack",
			Resource: stack,
			Message:  fmt.Sprintf("Deploying stack %s", stack),
		})
		return o.runtime.DeployStack(ctx, file, stack)
	},
		retry.WithMaxRetries(o.attempts),
		retry.WithFixedDelay(o.deployDelay),
		retry.WithSleeper(o.sleep),
		retry.WithOnRetry(func(attempt int, err error) {
			o.observer.Printf("[Stack] Unable to deploy the stack (attempt %d): %v", attempt, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to deploy stack %s: %w", provisioning.ErrInfrastructure, stack, err)
	}
	return nil
}

// waitForTasks polls the stack until every service has a running task with
// an address. Exited tasks are inspected again on every poll until the
// scheduler marks them for shutdown.
func (o *Orchestrator) waitForTasks(ctx context.Context, stack string, services []string) error {
	o.observer.Printf("[Stack] Waiting for stack tasks to start")
	o.tasks = nil
	known := map[string]*Task{}

	err := retry.Poll(ctx, o.taskIterations, o.taskInterval, o.sleep, func(i int) (bool, error) {
		o.observer.Progress("tasks", i+1, o.taskIterations)

		infos, err := o.runtime.ListTasks(ctx, stack)
		if err != nil {
			o.observer.Printf("[Stack] Unable to list tasks of %s: %v", stack, err)
			return false, nil
		}
		for _, info := range infos {
			if t, ok := known[info.ID]; ok {
				if info.DesiredState != "" {
					t.DesiredState = info.DesiredState
				}
				continue
			}
			t := &Task{TaskID: info.ID, ServiceName: info.ServiceName, DesiredState: info.DesiredState}
			known[info.ID] = t
			o.tasks = append(o.tasks, t)
		}

		for _, t := range o.tasks {
			if !t.Finished {
				o.inspectTask(ctx, t)
			}
		}
		o.dropShutdownTasks()

		return len(o.missingServices(services)) == 0, nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, retry.ErrPollExhausted) {
		return err
	}

	for _, t := range o.tasks {
		o.observer.Printf("[Stack] %s", t)
	}
	missing := o.missingServices(services)
	return fmt.Errorf("%w: services did not start: %s", provisioning.ErrAvailabilityTimeout, strings.Join(missing, ", "))
}

// inspectTask refreshes t from the runtime. Lookup failures leave the task
// unfinished so the next poll tries again.
func (o *Orchestrator) inspectTask(ctx context.Context, t *Task) {
	status, err := o.runtime.TaskStateAndIP(ctx, t.TaskID)
	if err != nil {
		o.observer.Printf("[Stack] Unable to get information about the task '%s': %v", t.TaskID, err)
		return
	}
	if status.DesiredState != "" {
		t.DesiredState = status.DesiredState
	}

	switch {
	case status.State == taskStateRunning && status.IP != "":
		t.ContainerID = status.ContainerID
		t.PrivateIP = status.IP
		public, err := o.publicAddress(ctx, t)
		if err != nil {
			o.observer.Printf("[Stack] Unable to determine the IP address of the container %s: %v", t.ContainerID, err)
			return
		}
		t.PublicIP = public
		t.Running = true
		t.Finished = true
		t.Exited = false
	case terminalTaskStates[status.State]:
		t.ContainerID = status.ContainerID
		t.Exited = true
	default:
		t.Exited = false
	}
}

func (o *Orchestrator) publicAddress(ctx context.Context, t *Task) (string, error) {
	dump, err := o.runtime.RunInContainer(ctx, FibTrieCommand, t.ContainerID)
	if err != nil {
		return "", err
	}
	return ExternalAddress(dump, t.PrivateIP)
}

// dropShutdownTasks forgets tasks the scheduler is replacing. Their IDs stay
// known so later polls do not pick them up again.
func (o *Orchestrator) dropShutdownTasks() {
	kept := o.tasks[:0]
	for _, t := range o.tasks {
		if t.DesiredState == desiredStateShutdown {
			continue
		}
		kept = append(kept, t)
	}
	o.tasks = kept
}

func (o *Orchestrator) missingServices(services []string) []string {
	finished := map[string]bool{}
	for _, t := range o.tasks {
		if t.Finished && t.Running {
			finished[t.ServiceName] = true
		}
	}
	var missing []string
	for _, s := range services {
		if !finished[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// waitForApplications polls the health probes of every task that is not
// ready yet.
func (o *Orchestrator) waitForApplications(ctx context.Context) error {
	o.observer.Printf("[Stack] Waiting for applications to become ready")

	err := retry.Poll(ctx, o.appIterations, o.appInterval, o.sleep, func(i int) (bool, error) {
		o.observer.Progress("applications", i+1, o.appIterations)
		ready := true
		for _, t := range o.tasks {
			if t.Ready {
				continue
			}
			t.Ready = o.probeTask(ctx, t)
			ready = ready && t.Ready
		}
		return ready, nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, retry.ErrPollExhausted) {
		return err
	}

	var unready []string
	for _, t := range o.tasks {
		if t.Ready {
			continue
		}
		unready = append(unready, t.ServiceName)
		provisioning.LogDiagnostic(o.observer, "applications", t.ServiceName, o.runtime.ContainerLogs(ctx, t.ContainerID))
	}
	return fmt.Errorf("%w: applications are not ready: %s", provisioning.ErrAvailabilityTimeout, strings.Join(unready, ", "))
}

// probeTask checks every product of the task's node. Tasks without an
// address have nothing to probe.
func (o *Orchestrator) probeTask(ctx context.Context, t *Task) bool {
	if t.PrivateIP == "" {
		return true
	}
	run := func(ctx context.Context, command []string) (string, error) {
		return o.runtime.RunInContainer(ctx, command, t.ContainerID)
	}
	for _, product := range o.cfg.Products(t.ServiceName) {
		ok := o.probes.For(product.Name)(ctx, run)
		o.metrics.RecordProbe("health", ok)
		if !ok {
			return false
		}
	}
	return true
}

// attachBridge connects every running container to the bridge network and
// records the address it got there.
func (o *Orchestrator) attachBridge(ctx context.Context, network string) error {
	o.observer.Printf("[Stack] Attaching containers to network %s", network)
	attached, err := o.runtime.ListContainerIPs(ctx, network)
	if err != nil {
		return fmt.Errorf("%w: failed to inspect network %s: %w", provisioning.ErrInfrastructure, network, err)
	}

	for _, t := range o.runningTasks() {
		if _, ok := attached[t.ContainerID]; ok {
			continue
		}
		if err := o.runtime.ConnectNetwork(ctx, network, t.ContainerID); err != nil {
			return fmt.Errorf("%w: failed to attach container %s to %s: %w", provisioning.ErrInfrastructure, t.ContainerID, network, err)
		}
	}

	attached, err = o.runtime.ListContainerIPs(ctx, network)
	if err != nil {
		return fmt.Errorf("%w: failed to inspect network %s: %w", provisioning.ErrInfrastructure, network, err)
	}
	for _, t := range o.runningTasks() {
		ip, ok := attached[t.ContainerID]
		if !ok || ip == "" {
			return fmt.Errorf("%w: container %s has no address on %s", provisioning.ErrInfrastructure, t.ContainerID, network)
		}
		t.BridgeIP = ip
	}
	return nil
}

func (o *Orchestrator) runningTasks() []*Task {
	var out []*Task
	for _, t := range o.tasks {
		if t.Running {
			out = append(out, t)
		}
	}
	return out
}

// storeNetworkSettings records the first running task of every service.
// A service whose tasks all stopped fails the run.
func (o *Orchestrator) storeNetworkSettings(services []string) error {
	o.observer.Printf("[Stack] Generating network configuration file")
	file := o.cfg.NetworkSettingsFile()

	settings, err := netsettings.LoadOrNew(file)
	recorded := map[string]bool{}
	res := result.From(settings, err).AndThen(func(s *netsettings.Settings) result.Result[*netsettings.Settings] {
		for _, t := range o.runningTasks() {
			if recorded[t.ServiceName] {
				continue
			}
			recorded[t.ServiceName] = true
			s.Add(t.ServiceName, netsettings.Record{
				Network:           t.BridgeIP,
				PrivateIP:         t.PrivateIP,
				DockerContainerID: t.ContainerID,
			})
		}
		var stopped []string
		for _, name := range services {
			if !recorded[name] {
				stopped = append(stopped, name)
			}
		}
		if len(stopped) > 0 {
			sort.Strings(stopped)
			return result.Errorf[*netsettings.Settings]("%w: services have no running task: %s",
				provisioning.ErrAvailabilityTimeout, strings.Join(stopped, ", "))
		}
		return result.From(s, s.Store(file))
	})

	_, err = res.Unwrap()
	return err
}

func (o *Orchestrator) recordOutcomes(services []string, elapsed time.Duration, err error) {
	for _, name := range services {
		outcome := provisioning.Outcome{Node: name, State: provisioning.NodeVerified, Attempts: 1, Duration: elapsed}
		if err != nil {
			outcome.State = provisioning.NodeFailed
			outcome.Err = err
		}
		o.metrics.RecordOutcome(string(config.ProviderDocker), outcome)
	}
}
