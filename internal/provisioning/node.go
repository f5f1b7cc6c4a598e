package provisioning

import (
	"fmt"
	"time"
)

// NodeState is the in-memory convergence state of a node during a run.
type NodeState int

const (
	NodeNotRunning NodeState = iota
	NodeRunning
	NodeNetworkKnown
	NodeConfigured
	NodeVerified
	NodeFailed
)

func (s NodeState) String() string {
	switch s {
	case NodeNotRunning:
		return "not-running"
	case NodeRunning:
		return "running"
	case NodeNetworkKnown:
		return "network-known"
	case NodeConfigured:
		return "configured"
	case NodeVerified:
		return "verified"
	case NodeFailed:
		return "failed"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen in this run.
func (s NodeState) Terminal() bool {
	return s == NodeVerified || s == NodeFailed
}

// Outcome is the final result of one node.
type Outcome struct {
	Node     string
	State    NodeState
	Attempts int
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the node converged.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.State == NodeVerified
}
