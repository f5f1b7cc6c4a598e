// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the command definitions in the commands package
// and can be tested without the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/platform/hcloud"
	"github.com/imamik/stagehand/internal/platform/ssh"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/provisioning/infra"
	"github.com/imamik/stagehand/internal/provisioning/stack"
)

var summaryOutput io.Writer = os.Stdout

// UpOptions are the flags of the up command.
type UpOptions struct {
	// Attempts overrides the provider default when not negative.
	Attempts       int
	Recreate       bool
	Labels         []string
	MetricsFile    string
	Publish        bool
	ToolConfigFile string
}

// upRun carries what one up invocation shares between its steps.
type upRun struct {
	cfg      *config.Configuration
	tool     *config.ToolConfig
	timeouts *config.Timeouts
	runID    string
	observer provisioning.Observer
	metrics  *provisioning.Metrics
	opts     UpOptions
}

// Up brings up the nodes addressed by target.
//
// The network settings file is written even when some nodes fail. Metrics
// are written whenever a file was requested; publishing only happens after
// a fully successful run.
func Up(ctx context.Context, target string, opts UpOptions) error {
	cfg, err := loadConfiguration(target, opts.Labels...)
	if err != nil {
		return err
	}
	tool, err := loadToolConfig(opts.ToolConfigFile)
	if err != nil {
		return err
	}

	var publisher Publisher
	if opts.Publish {
		if publisher, err = newPublisher(tool.Publish); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	metrics, err := provisioning.NewMetrics(registry)
	if err != nil {
		return err
	}

	runID := newRunID()
	r := &upRun{
		cfg:      cfg,
		tool:     tool,
		timeouts: loadTimeouts(),
		runID:    runID,
		observer: newObserver().WithFields(map[string]string{"run": runID}),
		metrics:  metrics,
		opts:     opts,
	}

	nodes := cfg.NodeNames()
	r.observer.Printf("[Up] Bringing up %s on %s: %s", cfg.Name, cfg.Provider, strings.Join(nodes, ", "))

	var rows []summaryRow
	var runErr error
	switch cfg.Provider {
	case config.ProviderHCloud:
		rows, runErr = r.upServers(ctx, nodes)
	case config.ProviderDocker:
		rows, runErr = r.upStack(ctx)
	default:
		return fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	if rows != nil {
		fillAddresses(rows, cfg.NetworkSettingsFile())
		printSummary(summaryOutput, styledOutput(), cfg.Name, rows)
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("failed to write metrics: %w", err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if publisher != nil {
		location, err := publishSettings(ctx, publisher, cfg)
		if err != nil {
			return err
		}
		r.observer.Printf("[Up] Network settings published to %s", location)
	}
	return nil
}

// upServers converges the nodes one by one on Hetzner Cloud.
func (r *upRun) upServers(ctx context.Context, nodes []string) ([]summaryRow, error) {
	if err := requireCloudAccess(r.tool); err != nil {
		return nil, err
	}
	if r.tool.SSH.KeyFile == "" {
		return nil, errors.New("cloud nodes need ssh.key_file in the tool configuration, create a key with stagehand keygen")
	}

	provider := hcloud.NewProvider(newCloudAPI(r.tool.HCloud.Token, r.timeouts), r.cfg, hcloud.Settings{
		KeyFile: r.tool.SSH.KeyFile,
		Image:   r.tool.HCloud.Image,
		RunID:   r.runID,
	})
	executor := newExecutor(ssh.Config{
		Port:        r.tool.SSH.Port,
		DialTimeout: r.timeouts.DialTimeout,
		RecipesPath: r.tool.Recipes.Path,
	})

	orch := infra.New(r.cfg, provider, executor,
		infra.WithAttempts(r.opts.Attempts),
		infra.WithRecreate(r.opts.Recreate),
		infra.WithProbes(r.timeouts.SSHProbeAttempts, r.timeouts.SSHProbeInterval),
		infra.WithObserver(r.observer),
		infra.WithMetrics(r.metrics, string(config.ProviderHCloud)),
	)
	err := orch.Up(ctx, nodes)
	return outcomeRows(orch.Outcomes()), err
}

// upStack deploys the selected services of the docker configuration.
func (r *upRun) upStack(ctx context.Context) ([]summaryRow, error) {
	runtime, err := newContainerRuntime(r.runID)
	if err != nil {
		return nil, err
	}

	opts := []stack.Option{
		stack.WithRecreate(r.opts.Recreate),
		stack.WithTimeouts(*r.timeouts),
		stack.WithProbeTable(stack.DefaultProbeTable(r.tool.Database.User, r.tool.Database.Password)),
		stack.WithObserver(r.observer),
		stack.WithMetrics(r.metrics),
	}
	if r.opts.Attempts >= 0 {
		opts = append(opts, stack.WithAttempts(r.opts.Attempts))
	}

	orch := stack.New(r.cfg, runtime, opts...)
	err = orch.Configure(ctx)
	return taskRows(orch.Tasks()), err
}

func requireCloudAccess(tool *config.ToolConfig) error {
	if tool.HCloud.Token == "" {
		return errors.New("cloud nodes need an API token, set hcloud.token in the tool configuration or HCLOUD_TOKEN")
	}
	return nil
}

// publishSettings uploads the stored network settings of cfg.
func publishSettings(ctx context.Context, publisher Publisher, cfg *config.Configuration) (string, error) {
	settings, err := netsettings.Load(cfg.NetworkSettingsFile()).Unwrap()
	if err != nil {
		return "", err
	}
	data, err := settings.Marshal()
	if err != nil {
		return "", err
	}
	return publisher.Publish(ctx, cfg.StackName(), data)
}
