package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
)

// Call is one recorded collaborator invocation.
type Call struct {
	Method string
	Node   string
}

func (c Call) String() string {
	return c.Method + "(" + c.Node + ")"
}

// MockInfrastructure is a function-field implementation of
// provisioning.Infrastructure. Unset functions succeed.
type MockInfrastructure struct {
	ApplyFunc           func(ctx context.Context, node string) error
	DestroyFunc         func(ctx context.Context, node string) error
	IsRunningFunc       func(ctx context.Context, node string) (bool, error)
	ResourceNetworkFunc func(ctx context.Context, node string) (provisioning.ResourceNetwork, error)

	mu    sync.Mutex
	calls []Call
}

var _ provisioning.Infrastructure = (*MockInfrastructure)(nil)

func (m *MockInfrastructure) record(method, node string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Node: node})
}

// Calls returns the recorded calls in order.
func (m *MockInfrastructure) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount counts calls of method for node.
func (m *MockInfrastructure) CallCount(method, node string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method && c.Node == node {
			n++
		}
	}
	return n
}

// Apply implements provisioning.Infrastructure.
func (m *MockInfrastructure) Apply(ctx context.Context, node string) error {
	m.record("Apply", node)
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, node)
	}
	return nil
}

// Destroy implements provisioning.Infrastructure.
func (m *MockInfrastructure) Destroy(ctx context.Context, node string) error {
	m.record("Destroy", node)
	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, node)
	}
	return nil
}

// IsRunning implements provisioning.Infrastructure.
func (m *MockInfrastructure) IsRunning(ctx context.Context, node string) (bool, error) {
	m.record("IsRunning", node)
	if m.IsRunningFunc != nil {
		return m.IsRunningFunc(ctx, node)
	}
	return true, nil
}

// ResourceNetwork implements provisioning.Infrastructure.
func (m *MockInfrastructure) ResourceNetwork(ctx context.Context, node string) (provisioning.ResourceNetwork, error) {
	m.record("ResourceNetwork", node)
	if m.ResourceNetworkFunc != nil {
		return m.ResourceNetworkFunc(ctx, node)
	}
	return DefaultResourceNetwork(node), nil
}

// DefaultResourceNetwork returns deterministic addresses derived from the
// node name.
func DefaultResourceNetwork(node string) provisioning.ResourceNetwork {
	return provisioning.ResourceNetwork{
		PublicIP:  "203.0.113." + suffix(node),
		PrivateIP: "10.0.0." + suffix(node),
		User:      "root",
		Hostname:  node,
		KeyFile:   "/keys/id_rsa",
	}
}

func suffix(node string) string {
	sum := 0
	for _, r := range node {
		sum += int(r)
	}
	return fmt.Sprintf("%d", sum%200+10)
}

// ExecCall is one recorded remote executor invocation.
type ExecCall struct {
	Method     string
	Conn       netsettings.Record
	Command    string
	ConfigName string
	Files      []provisioning.FileTransfer
}

// MockExecutor is a function-field implementation of
// provisioning.RemoteExecutor. By default every command answers
// "connected", the provisioned marker is present and Configure succeeds.
type MockExecutor struct {
	RunCommandFunc func(ctx context.Context, conn netsettings.Record, command string) (string, error)
	ConfigureFunc  func(ctx context.Context, conn netsettings.Record, configName string, files []provisioning.FileTransfer) error

	mu    sync.Mutex
	calls []ExecCall
}

var _ provisioning.RemoteExecutor = (*MockExecutor)(nil)

// Calls returns the recorded calls in order.
func (m *MockExecutor) Calls() []ExecCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecCall(nil), m.calls...)
}

// ConfigureCalls returns only the recorded Configure calls.
func (m *MockExecutor) ConfigureCalls() []ExecCall {
	var out []ExecCall
	for _, c := range m.Calls() {
		if c.Method == "Configure" {
			out = append(out, c)
		}
	}
	return out
}

// RunCommand implements provisioning.RemoteExecutor.
func (m *MockExecutor) RunCommand(ctx context.Context, conn netsettings.Record, command string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ExecCall{Method: "RunCommand", Conn: conn, Command: command})
	m.mu.Unlock()
	if m.RunCommandFunc != nil {
		return m.RunCommandFunc(ctx, conn, command)
	}
	if command == provisioning.ProvisionedCheckCommand {
		return "PROVISIONED", nil
	}
	return "connected\n", nil
}

// Configure implements provisioning.RemoteExecutor.
func (m *MockExecutor) Configure(ctx context.Context, conn netsettings.Record, configName string, files []provisioning.FileTransfer) error {
	m.mu.Lock()
	m.calls = append(m.calls, ExecCall{Method: "Configure", Conn: conn, ConfigName: configName, Files: files})
	m.mu.Unlock()
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(ctx, conn, configName, files)
	}
	return nil
}

// MockContainerRuntime is a testify mock of provisioning.ContainerRuntime.
type MockContainerRuntime struct {
	mock.Mock
}

var _ provisioning.ContainerRuntime = (*MockContainerRuntime)(nil)

// DeployStack implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) DeployStack(ctx context.Context, file, stack string) error {
	args := m.Called(ctx, file, stack)
	return args.Error(0)
}

// DestroyStack implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) DestroyStack(ctx context.Context, stack string) error {
	args := m.Called(ctx, stack)
	return args.Error(0)
}

// CreateBridgeNetwork implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) CreateBridgeNetwork(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// ListTasks implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) ListTasks(ctx context.Context, stack string) ([]provisioning.TaskInfo, error) {
	args := m.Called(ctx, stack)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provisioning.TaskInfo), args.Error(1)
}

// TaskStateAndIP implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) TaskStateAndIP(ctx context.Context, taskID string) (provisioning.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(provisioning.TaskStatus), args.Error(1)
}

// RunInContainer implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) RunInContainer(ctx context.Context, command []string, containerID string) (string, error) {
	args := m.Called(ctx, command, containerID)
	return args.String(0), args.Error(1)
}

// ConnectNetwork implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) ConnectNetwork(ctx context.Context, network, containerID string) error {
	args := m.Called(ctx, network, containerID)
	return args.Error(0)
}

// ListContainerIPs implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) ListContainerIPs(ctx context.Context, network string) (map[string]string, error) {
	args := m.Called(ctx, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// ContainerLogs implements provisioning.ContainerRuntime.
func (m *MockContainerRuntime) ContainerLogs(ctx context.Context, containerID string) string {
	args := m.Called(ctx, containerID)
	return args.String(0)
}
