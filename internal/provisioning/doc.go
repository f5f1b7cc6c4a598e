// Package provisioning provides the shared types of the node orchestrators.
//
// # Subpackages
//
//   - infra/ — per-node convergence for cloud virtual machines
//   - stack/ — convergence for container nodes deployed as a swarm stack
//
// # Core Types
//
// Infrastructure, RemoteExecutor and ContainerRuntime are the collaborators
// the orchestrators drive; their implementations live under internal/platform.
// Observer carries structured progress output, Metrics the run counters, and
// Outcome the final state of every node.
package provisioning
