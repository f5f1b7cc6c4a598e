package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/platform/hcloud"
	"github.com/imamik/stagehand/internal/provisioning"
)

// DestroyOptions are the flags of the destroy command.
type DestroyOptions struct {
	Labels         []string
	Unpublish      bool
	ToolConfigFile string
}

// Destroy removes the machines addressed by target and forgets how to reach
// them. Docker stacks can only be removed as a whole.
func Destroy(ctx context.Context, target string, opts DestroyOptions) error {
	cfg, err := loadConfiguration(target, opts.Labels...)
	if err != nil {
		return err
	}
	tool, err := loadToolConfig(opts.ToolConfigFile)
	if err != nil {
		return err
	}

	var publisher Publisher
	if opts.Unpublish {
		if publisher, err = newPublisher(tool.Publish); err != nil {
			return err
		}
	}

	obs := newObserver()
	var removed []string
	switch cfg.Provider {
	case config.ProviderHCloud:
		removed, err = destroyServers(ctx, cfg, tool, obs)
	case config.ProviderDocker:
		if cfg.SingleNode() != "" || len(opts.Labels) > 0 {
			return errors.New("a docker stack can only be destroyed as a whole")
		}
		removed, err = destroyStack(ctx, cfg, obs)
	default:
		return fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	if ferr := forgetNodes(cfg.NetworkSettingsFile(), removed); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if err != nil {
		return err
	}

	if publisher != nil {
		if err := publisher.Unpublish(ctx, cfg.StackName()); err != nil {
			return err
		}
		obs.Printf("[Destroy] Removed published network settings of %s", cfg.StackName())
	}
	return nil
}

// destroyServers deletes the server of every selected node and returns the
// nodes that are gone.
func destroyServers(ctx context.Context, cfg *config.Configuration, tool *config.ToolConfig, obs provisioning.Observer) ([]string, error) {
	if err := requireCloudAccess(tool); err != nil {
		return nil, err
	}
	provider := hcloud.NewProvider(newCloudAPI(tool.HCloud.Token, loadTimeouts()), cfg, hcloud.Settings{})

	var removed []string
	var errs []error
	for _, node := range cfg.NodeNames() {
		start := time.Now()
		provisioning.LogPhaseStart(obs, "destroy", node)
		if err := provider.Destroy(ctx, node); err != nil {
			provisioning.LogPhaseFailed(obs, "destroy", node, err)
			errs = append(errs, fmt.Errorf("failed to destroy node %s: %w", node, err))
			continue
		}
		provisioning.LogPhaseComplete(obs, "destroy", node, time.Since(start))
		removed = append(removed, node)
	}
	return removed, errors.Join(errs...)
}

func destroyStack(ctx context.Context, cfg *config.Configuration, obs provisioning.Observer) ([]string, error) {
	runtime, err := newContainerRuntime("")
	if err != nil {
		return nil, err
	}

	stackName := cfg.StackName()
	start := time.Now()
	provisioning.LogPhaseStart(obs, "destroy", stackName)
	if err := runtime.DestroyStack(ctx, stackName); err != nil {
		provisioning.LogPhaseFailed(obs, "destroy", stackName, err)
		return nil, err
	}
	provisioning.LogPhaseComplete(obs, "destroy", stackName, time.Since(start))

	settings, err := netsettings.LoadOrNew(cfg.NetworkSettingsFile())
	if err != nil {
		return cfg.NodeNames(), nil
	}
	return append(cfg.NodeNames(), settings.Names()...), nil
}

// forgetNodes drops nodes from an existing settings file.
func forgetNodes(file string, nodes []string) error {
	if len(nodes) == 0 {
		return nil
	}
	if _, err := os.Stat(file); err != nil {
		return nil
	}
	settings, err := netsettings.Load(file).Unwrap()
	if err != nil {
		return err
	}
	for _, node := range nodes {
		settings.Remove(node)
	}
	return settings.Store(file)
}
