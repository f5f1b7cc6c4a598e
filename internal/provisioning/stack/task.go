package stack

import "fmt"

// Swarm task states that end a task without it running.
var terminalTaskStates = map[string]bool{
	"complete": true,
	"failed":   true,
	"shutdown": true,
	"rejected": true,
	"orphaned": true,
	"remove":   true,
}

const (
	taskStateRunning     = "running"
	desiredStateShutdown = "shutdown"
)

// Task is the orchestrator's view of one scheduled container.
type Task struct {
	TaskID       string
	ServiceName  string
	ContainerID  string
	PrivateIP    string
	PublicIP     string
	BridgeIP     string
	DesiredState string

	// Finished is set once the task runs with a known address. A task that
	// exited is not finished: the scheduler either restarts it in place or
	// marks it for shutdown and starts a replacement.
	Finished bool
	Running  bool
	Ready    bool
	// Exited is set while the task sits in a terminal state.
	Exited bool
}

func (t *Task) String() string {
	state := "pending"
	switch {
	case t.Running:
		state = "running"
	case t.Exited:
		state = "stopped"
	}
	return fmt.Sprintf("task %s of %s: %s (desired %s, container %s, ip %s)",
		t.TaskID, t.ServiceName, state, valueOr(t.DesiredState, "-"), valueOr(t.ContainerID, "-"), valueOr(t.PrivateIP, "-"))
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
