package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"

	"github.com/imamik/stagehand/internal/util/labels"
)

const bridgeDriver = "bridge"

// CreateBridgeNetwork creates a local bridge network unless one with the
// same name exists.
func (r *Runtime) CreateBridgeNetwork(ctx context.Context, name string) error {
	found, err := r.findNetwork(ctx, name)
	if err != nil {
		return err
	}
	if found != nil {
		return nil
	}

	_, err = r.api.NetworkCreate(ctx, name, network.CreateOptions{
		Driver:     bridgeDriver,
		Attachable: true,
		Labels:     map[string]string{labels.KeyManagedBy: labels.ManagedBy},
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge network %s: %w", name, err)
	}
	return nil
}

// ConnectNetwork attaches the container to network.
func (r *Runtime) ConnectNetwork(ctx context.Context, networkName, containerID string) error {
	if err := r.api.NetworkConnect(ctx, networkName, containerID, nil); err != nil {
		return fmt.Errorf("failed to connect %s to %s: %w", containerID, networkName, err)
	}
	return nil
}

// ListContainerIPs maps the ID of every container on network to its IPv4
// address.
func (r *Runtime) ListContainerIPs(ctx context.Context, networkName string) (map[string]string, error) {
	inspect, err := r.api.NetworkInspect(ctx, networkName, network.InspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect network %s: %w", networkName, err)
	}
	ips := make(map[string]string, len(inspect.Containers))
	for id, endpoint := range inspect.Containers {
		if endpoint.IPv4Address == "" {
			continue
		}
		ips[id] = stripPrefixLength(endpoint.IPv4Address)
	}
	return ips, nil
}
