package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stagehand/internal/util/retry"
)

// resolveImage finds the image for the server type's architecture.
func (c *RealClient) resolveImage(ctx context.Context, name string, serverType *hcloud.ServerType) (*hcloud.Image, error) {
	image, _, err := c.client.Image.GetForArchitecture(ctx, name, serverType.Architecture)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, fmt.Errorf("image not found: %s (%s)", name, serverType.Architecture)
	}
	if image.Status != "" && image.Status != hcloud.ImageStatusAvailable {
		return nil, fmt.Errorf("image %s is %s", name, image.Status)
	}
	return image, nil
}

func (c *RealClient) resolveSSHKeys(ctx context.Context, names []string) ([]*hcloud.SSHKey, error) {
	keys := make([]*hcloud.SSHKey, 0, len(names))
	for _, name := range names {
		key, _, err := c.client.SSHKey.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", name, err)
		}
		if key == nil {
			return nil, fmt.Errorf("ssh key not found: %s", name)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *RealClient) resolveLocation(ctx context.Context, name string) (*hcloud.Location, error) {
	if name == "" {
		return nil, nil
	}
	location, _, err := c.client.Location.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", name, err)
	}
	if location == nil {
		return nil, fmt.Errorf("location not found: %s", name)
	}
	return location, nil
}

// attachServerToNetwork attaches a server to a network with an
// automatically assigned address.
func (c *RealClient) attachServerToNetwork(ctx context.Context, server *hcloud.Server, networkID int64) error {
	opts := hcloud.ServerAttachToNetworkOpts{Network: &hcloud.Network{ID: networkID}}

	err := retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := c.client.Server.AttachToNetwork(ctx, server, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		return waitForActions(ctx, c.client, action)
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return fmt.Errorf("failed to attach server to network: %w", err)
	}
	return nil
}

func (c *RealClient) powerOn(ctx context.Context, server *hcloud.Server) error {
	action, _, err := c.client.Server.Poweron(ctx, server)
	if err != nil {
		return fmt.Errorf("failed to power on server: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for server power on: %w", err)
	}
	return nil
}

// attachedTo reports whether the server has an address in the network.
func attachedTo(s *hcloud.Server, networkID int64) bool {
	for _, pn := range s.PrivateNet {
		if pn.Network != nil && pn.Network.ID == networkID {
			return true
		}
	}
	return false
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil && !s.PublicNet.IPv4.IP.IsUnspecified() {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}

// ServerPrivateIP returns the address of the server's first private
// network, or empty string if it has none.
func ServerPrivateIP(s *hcloud.Server) string {
	if s != nil && len(s.PrivateNet) > 0 && s.PrivateNet[0].IP != nil {
		return s.PrivateNet[0].IP.String()
	}
	return ""
}
