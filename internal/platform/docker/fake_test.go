package docker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/pkg/stdcopy"
)

// execResult is the scripted outcome of a command run in a container.
type execResult struct {
	stdout, stderr string
	exitCode       int
}

// fakeAPI is an in-memory engine holding services, tasks and networks.
type fakeAPI struct {
	mu sync.Mutex

	services []swarm.Service
	tasks    []swarm.Task
	networks []network.Inspect

	created []swarm.ServiceSpec
	updated []swarm.ServiceSpec
	removed []string

	execs    map[string][]string
	results  map[string]execResult
	logs     map[string]string
	connects []string

	createServiceErr error
	removeNetworkErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		execs:   map[string][]string{},
		results: map[string]execResult{},
		logs:    map[string]string{},
	}
}

func matchesLabel(args filters.Args, lbls map[string]string) bool {
	for _, want := range args.Get("label") {
		key, value, _ := strings.Cut(want, "=")
		if lbls[key] != value {
			return false
		}
	}
	return true
}

func (f *fakeAPI) ServiceCreate(_ context.Context, spec swarm.ServiceSpec, _ swarm.ServiceCreateOptions) (swarm.ServiceCreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createServiceErr != nil {
		return swarm.ServiceCreateResponse{}, f.createServiceErr
	}
	f.created = append(f.created, spec)
	id := "svc-" + spec.Name
	f.services = append(f.services, swarm.Service{ID: id, Spec: spec})
	return swarm.ServiceCreateResponse{ID: id}, nil
}

func (f *fakeAPI) ServiceUpdate(_ context.Context, id string, _ swarm.Version, spec swarm.ServiceSpec, _ swarm.ServiceUpdateOptions) (swarm.ServiceUpdateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, spec)
	for i := range f.services {
		if f.services[i].ID == id {
			f.services[i].Spec = spec
		}
	}
	return swarm.ServiceUpdateResponse{}, nil
}

func (f *fakeAPI) ServiceList(_ context.Context, opts swarm.ServiceListOptions) ([]swarm.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []swarm.Service
	for _, svc := range f.services {
		if matchesLabel(opts.Filters, svc.Spec.Labels) {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (f *fakeAPI) ServiceRemove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	for i, svc := range f.services {
		if svc.ID == id {
			f.services = append(f.services[:i], f.services[i+1:]...)
			return nil
		}
	}
	return errors.New("no such service: " + id)
}

func (f *fakeAPI) TaskList(_ context.Context, opts swarm.TaskListOptions) ([]swarm.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []swarm.Task
	for _, task := range f.tasks {
		if matchesLabel(opts.Filters, task.Labels) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeAPI) TaskInspectWithRaw(_ context.Context, id string) (swarm.Task, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.ID == id {
			return task, nil, nil
		}
	}
	return swarm.Task{}, nil, errors.New("no such task: " + id)
}

func (f *fakeAPI) NetworkCreate(_ context.Context, name string, opts network.CreateOptions) (network.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "net-" + name
	f.networks = append(f.networks, network.Inspect{
		ID:         id,
		Name:       name,
		Driver:     opts.Driver,
		Scope:      opts.Scope,
		Attachable: opts.Attachable,
		Labels:     opts.Labels,
		Containers: map[string]network.EndpointResource{},
	})
	return network.CreateResponse{ID: id}, nil
}

func (f *fakeAPI) NetworkList(_ context.Context, opts network.ListOptions) ([]network.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []network.Summary
	for _, n := range f.networks {
		if names := opts.Filters.Get("name"); len(names) > 0 && !strings.Contains(n.Name, names[0]) {
			continue
		}
		if matchesLabel(opts.Filters, n.Labels) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeAPI) NetworkInspect(_ context.Context, name string, _ network.InspectOptions) (network.Inspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.networks {
		if n.Name == name || n.ID == name {
			return n, nil
		}
	}
	return network.Inspect{}, errors.New("network " + name + " not found")
}

func (f *fakeAPI) NetworkConnect(_ context.Context, name, containerID string, _ *network.EndpointSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.networks {
		if n.Name == name {
			f.connects = append(f.connects, name+"/"+containerID)
			n.Containers[containerID] = network.EndpointResource{IPv4Address: "172.20.0.9/16"}
			return nil
		}
	}
	return errors.New("network " + name + " not found")
}

func (f *fakeAPI) NetworkRemove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeNetworkErr != nil {
		return f.removeNetworkErr
	}
	f.removed = append(f.removed, id)
	for i, n := range f.networks {
		if n.ID == id {
			f.networks = append(f.networks[:i], f.networks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAPI) ContainerExecCreate(_ context.Context, containerID string, opts container.ExecOptions) (container.ExecCreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.results[containerID]; !ok {
		return container.ExecCreateResponse{}, errors.New("no such container: " + containerID)
	}
	f.execs[containerID] = opts.Cmd
	return container.ExecCreateResponse{ID: containerID}, nil
}

func (f *fakeAPI) ContainerExecAttach(_ context.Context, execID string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	f.mu.Lock()
	result := f.results[execID]
	f.mu.Unlock()

	var frames bytes.Buffer
	if result.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&frames, stdcopy.Stdout).Write([]byte(result.stdout))
	}
	if result.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&frames, stdcopy.Stderr).Write([]byte(result.stderr))
	}
	conn, peer := net.Pipe()
	_ = peer.Close()
	return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(&frames)}, nil
}

func (f *fakeAPI) ContainerExecInspect(_ context.Context, execID string) (container.ExecInspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return container.ExecInspect{ExecID: execID, ExitCode: f.results[execID].exitCode}, nil
}

func (f *fakeAPI) ContainerLogs(_ context.Context, containerID string, _ container.LogsOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	logs, ok := f.logs[containerID]
	if !ok {
		return nil, errors.New("no such container: " + containerID)
	}
	var frames bytes.Buffer
	for _, line := range strings.SplitAfter(logs, "\n") {
		if line == "" {
			continue
		}
		stream := stdcopy.Stdout
		if strings.HasPrefix(line, "ERROR") {
			stream = stdcopy.Stderr
		}
		_, _ = stdcopy.NewStdWriter(&frames, stream).Write([]byte(line))
	}
	return io.NopCloser(&frames), nil
}
