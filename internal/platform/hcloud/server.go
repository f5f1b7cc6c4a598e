package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stagehand/internal/util/retry"
)

// CreateServer creates a server and waits until it is up. Servers joining
// a private network are created stopped, attached and then powered on.
func (c *RealClient) CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	createOpts, err := c.buildServerCreateOpts(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := c.createServerWithRetry(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	if opts.NetworkID != 0 {
		if err := c.attachServerToNetwork(ctx, result.Server, opts.NetworkID); err != nil {
			return nil, err
		}
		if err := c.powerOn(ctx, result.Server); err != nil {
			return nil, err
		}
	}
	return result.Server, nil
}

// StartServer converges a server that already exists. It joins the network
// unless attached and is powered on when it is off.
func (c *RealClient) StartServer(ctx context.Context, server *hcloud.Server, networkID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	if networkID != 0 && !attachedTo(server, networkID) {
		if err := c.attachServerToNetwork(ctx, server, networkID); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}
	if server.Status == hcloud.ServerStatusOff {
		if err := c.powerOn(ctx, server); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}
	return nil
}

func (c *RealClient) buildServerCreateOpts(ctx context.Context, opts ServerCreateOpts) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, opts.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", opts.ServerType)
	}

	image, err := c.resolveImage(ctx, opts.Image, serverType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}
	sshKeys, err := c.resolveSSHKeys(ctx, opts.SSHKeys)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}
	location, err := c.resolveLocation(ctx, opts.Location)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	var startAfterCreate *bool
	if opts.NetworkID != 0 {
		startAfterCreate = hcloud.Ptr(false)
	}

	return hcloud.ServerCreateOpts{
		Name:             opts.Name,
		ServerType:       serverType,
		Image:            image,
		SSHKeys:          sshKeys,
		Labels:           opts.Labels,
		Location:         location,
		StartAfterCreate: startAfterCreate,
	}, nil
}

func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return result, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	if err := waitForActions(ctx, c.client, append([]*hcloud.Action{result.Action}, result.NextActions...)...); err != nil {
		return result, fmt.Errorf("failed to wait for server creation: %w", err)
	}
	return result, nil
}

// DeleteServer deletes the server with the given name.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			res, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			return resp, waitForActions(ctx, c.client, res.Action)
		},
	}).Execute(ctx, c)
}

// GetServerByName returns the server, or nil if it does not exist.
func (c *RealClient) GetServerByName(ctx context.Context, name string) (*hcloud.Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", name, err)
	}
	return server, nil
}
