package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Address plan of the private network.
const (
	NetworkIPRange = "10.0.0.0/16"
	SubnetIPRange  = "10.0.0.0/24"
)

// EnsureNetwork ensures that a network exists with the given IP range.
func (c *RealClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, fmt.Errorf("invalid network ip range %s: %w", ipRange, err)
	}

	return (&EnsureOperation[*hcloud.Network, hcloud.NetworkCreateOpts]{
		Name:         name,
		ResourceType: "network",
		Get:          c.client.Network.Get,
		Create:       simpleCreate(c.client.Network.Create),
		Validate: func(network *hcloud.Network) error {
			if network.IPRange == nil || network.IPRange.String() != ipNet.String() {
				return fmt.Errorf("network %s exists but with different IP range %v (expected %s)",
					name, network.IPRange, ipRange)
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.NetworkCreateOpts {
			return hcloud.NetworkCreateOpts{Name: name, IPRange: ipNet, Labels: labels}
		},
	}).Execute(ctx, c)
}

// EnsureSubnet ensures that a cloud subnet with ipRange exists in network.
func (c *RealClient) EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error {
	for _, subnet := range network.Subnets {
		if subnet.IPRange != nil && subnet.IPRange.String() == ipRange {
			return nil
		}
	}

	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return fmt.Errorf("invalid subnet ip range: %w", err)
	}

	action, _, err := c.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{
		Subnet: hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     ipNet,
			NetworkZone: hcloud.NetworkZone(networkZone),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add subnet: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for subnet creation: %w", err)
	}
	return nil
}

// NetworkZone maps a location to the network zone it belongs to.
func NetworkZone(location string) string {
	switch location {
	case "ash":
		return string(hcloud.NetworkZoneUSEast)
	case "hil":
		return string(hcloud.NetworkZoneUSWest)
	case "sin":
		return string(hcloud.NetworkZoneAPSouthEast)
	default:
		return string(hcloud.NetworkZoneEUCentral)
	}
}
