// Package stack converges container nodes deployed as a Docker Swarm stack.
//
// Configure narrows the stack definition to the requested services, deploys
// it, waits until every service has a finished task, probes the
// applications inside the containers, attaches the containers to the
// stack's bridge network and finally records their bridge addresses in the
// network settings file.
package stack
