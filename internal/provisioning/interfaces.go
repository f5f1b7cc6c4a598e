package provisioning

import (
	"context"

	"github.com/imamik/stagehand/internal/netsettings"
)

// ResourceNetwork holds the connection parameters reported by the
// infrastructure for a node.
type ResourceNetwork struct {
	PublicIP  string
	PrivateIP string
	User      string
	Hostname  string
	KeyFile   string
}

// Record normalizes the network into a settings record that connects
// through the public address.
func (n ResourceNetwork) Record() netsettings.Record {
	return netsettings.Record{
		Network:   n.PublicIP,
		KeyFile:   n.KeyFile,
		PrivateIP: n.PrivateIP,
		User:      n.User,
		Hostname:  n.Hostname,
	}
}

// Infrastructure creates and inspects the machines backing nodes.
type Infrastructure interface {
	// Apply creates the node's resources. An error is a hard failure, not
	// merely a machine that is still booting.
	Apply(ctx context.Context, node string) error
	// Destroy removes the node's resources. Missing resources are not an error.
	Destroy(ctx context.Context, node string) error
	IsRunning(ctx context.Context, node string) (bool, error)
	ResourceNetwork(ctx context.Context, node string) (ResourceNetwork, error)
}

// FileTransfer names a local file and its path on the remote node, relative
// to the provisioning directory unless absolute.
type FileTransfer struct {
	Source string
	Target string
}

// RemoteExecutor runs commands on and provisions remote nodes.
type RemoteExecutor interface {
	RunCommand(ctx context.Context, conn netsettings.Record, command string) (string, error)
	// Configure uploads files and runs remote provisioning with the named
	// node configuration.
	Configure(ctx context.Context, conn netsettings.Record, configName string, files []FileTransfer) error
}

// TaskInfo identifies one scheduled container of a stack service.
type TaskInfo struct {
	ID           string
	ServiceName  string
	DesiredState string
}

// TaskStatus is the observed state of a task.
type TaskStatus struct {
	State        string
	DesiredState string
	ContainerID  string
	// IP is the task address inside the stack network, empty until running.
	IP string
}

// ContainerRuntime deploys stacks and inspects their containers.
type ContainerRuntime interface {
	DeployStack(ctx context.Context, file, stack string) error
	DestroyStack(ctx context.Context, stack string) error
	CreateBridgeNetwork(ctx context.Context, name string) error
	ListTasks(ctx context.Context, stack string) ([]TaskInfo, error)
	TaskStateAndIP(ctx context.Context, taskID string) (TaskStatus, error)
	RunInContainer(ctx context.Context, command []string, containerID string) (string, error)
	ConnectNetwork(ctx context.Context, network, containerID string) error
	// ListContainerIPs returns container ID to IPv4 address for every
	// container attached to network.
	ListContainerIPs(ctx context.Context, network string) (map[string]string, error)
	ContainerLogs(ctx context.Context, containerID string) string
}
