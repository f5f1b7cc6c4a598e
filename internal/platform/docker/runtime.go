package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"

	"github.com/imamik/stagehand/internal/provisioning"
)

// API is the part of the docker engine API the runtime uses.
// *client.Client satisfies it.
type API interface {
	ServiceCreate(ctx context.Context, service swarm.ServiceSpec, options swarm.ServiceCreateOptions) (swarm.ServiceCreateResponse, error)
	ServiceUpdate(ctx context.Context, serviceID string, version swarm.Version, service swarm.ServiceSpec, options swarm.ServiceUpdateOptions) (swarm.ServiceUpdateResponse, error)
	ServiceList(ctx context.Context, options swarm.ServiceListOptions) ([]swarm.Service, error)
	ServiceRemove(ctx context.Context, serviceID string) error
	TaskList(ctx context.Context, options swarm.TaskListOptions) ([]swarm.Task, error)
	TaskInspectWithRaw(ctx context.Context, taskID string) (swarm.Task, []byte, error)

	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkInspect(ctx context.Context, network string, options network.InspectOptions) (network.Inspect, error)
	NetworkConnect(ctx context.Context, network, container string, config *network.EndpointSettings) error
	NetworkRemove(ctx context.Context, network string) error

	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
}

// Runtime implements provisioning.ContainerRuntime on a docker swarm.
type Runtime struct {
	api   API
	runID string
}

var _ provisioning.ContainerRuntime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithRunID labels deployed services with the run identifier.
func WithRunID(id string) Option {
	return func(r *Runtime) {
		r.runID = id
	}
}

// NewRuntime wraps api.
func NewRuntime(api API, opts ...Option) *Runtime {
	r := &Runtime{api: api}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRuntimeFromEnv connects to the engine named by the DOCKER_*
// environment variables.
func NewRuntimeFromEnv(opts ...Option) (*Runtime, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewRuntime(c, opts...), nil
}
