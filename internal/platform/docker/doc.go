// Package docker deploys stacks on a docker swarm through the engine API.
//
// A compose-style stack file is translated into swarm services and overlay
// networks carrying the com.docker.stack.namespace label, the same way
// `docker stack deploy` does, so stacks can also be inspected and removed
// with the docker CLI.
package docker
