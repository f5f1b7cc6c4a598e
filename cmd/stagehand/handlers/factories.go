package handlers

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/platform/docker"
	"github.com/imamik/stagehand/internal/platform/hcloud"
	"github.com/imamik/stagehand/internal/platform/s3"
	"github.com/imamik/stagehand/internal/platform/ssh"
	"github.com/imamik/stagehand/internal/provisioning"
)

// Publisher stores network settings outside the configuration directory.
type Publisher interface {
	Publish(ctx context.Context, stack string, data []byte) (string, error)
	Fetch(ctx context.Context, stack string) ([]byte, error)
	Unpublish(ctx context.Context, stack string) error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	loadConfiguration = config.Load
	loadToolConfig    = config.LoadToolConfig
	loadTimeouts      = config.LoadTimeouts

	newRunID = uuid.NewString

	newObserver = func() provisioning.Observer {
		return provisioning.NewConsoleObserver()
	}

	newCloudAPI = func(token string, timeouts *config.Timeouts) hcloud.CloudAPI {
		return hcloud.NewRealClient(token, hcloud.WithTimeouts(timeouts))
	}

	newExecutor = func(cfg ssh.Config) provisioning.RemoteExecutor {
		return ssh.NewExecutor(cfg)
	}

	newContainerRuntime = func(runID string) (provisioning.ContainerRuntime, error) {
		rt, err := docker.NewRuntimeFromEnv(docker.WithRunID(runID))
		if err != nil {
			return nil, err
		}
		return rt, nil
	}

	newPublisher = func(settings config.PublishSettings) (Publisher, error) {
		p, err := s3.NewPublisher(settings)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	// styledOutput decides whether the run summary uses terminal styles.
	styledOutput = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)
