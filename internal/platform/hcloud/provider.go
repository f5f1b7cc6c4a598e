package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/util/keygen"
	"github.com/imamik/stagehand/internal/util/labels"
	"github.com/imamik/stagehand/internal/util/naming"
)

// Settings are the tool-level inputs of a Provider.
type Settings struct {
	// KeyFile is the private key used to log in; its public half is
	// uploaded to the cloud.
	KeyFile string
	// Image is used for nodes without a box.
	Image string
	// RunID is labelled onto every created server.
	RunID string
}

// Provider runs the nodes of a configuration as cloud servers.
type Provider struct {
	api      CloudAPI
	cfg      *config.Configuration
	settings Settings

	publicKey func(privateKeyFile string) ([]byte, error)
}

var _ provisioning.Infrastructure = (*Provider)(nil)

// NewProvider creates a provider for cfg.
func NewProvider(api CloudAPI, cfg *config.Configuration, settings Settings) *Provider {
	return &Provider{
		api:       api,
		cfg:       cfg,
		settings:  settings,
		publicKey: keygen.LoadPublicKey,
	}
}

func (p *Provider) node(name string) (config.Node, error) {
	node, ok := p.cfg.Node(name)
	if !ok {
		return config.Node{}, fmt.Errorf("node %q is not defined in %s", name, p.cfg.Path())
	}
	return node, nil
}

func (p *Provider) serverName(node string) string {
	return naming.Server(p.cfg.StackName(), node)
}

// Apply creates the node's server together with the stack's SSH key and
// private network. A server that already exists is attached and powered on
// instead.
func (p *Provider) Apply(ctx context.Context, name string) error {
	node, err := p.node(name)
	if err != nil {
		return err
	}

	stack := p.cfg.StackName()
	stackLabels := labels.NewLabelBuilder(stack).WithRunIfSet(p.settings.RunID).Build()

	publicKey, err := p.publicKey(p.settings.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load public key: %w", err)
	}
	key, err := p.api.EnsureSSHKey(ctx, naming.SSHKey(stack), string(publicKey), stackLabels)
	if err != nil {
		return err
	}

	var networkID int64
	if p.cfg.HCloud.Network != "" {
		network, err := p.api.EnsureNetwork(ctx, p.cfg.HCloud.Network, NetworkIPRange, stackLabels)
		if err != nil {
			return err
		}
		if err := p.api.EnsureSubnet(ctx, network, SubnetIPRange, NetworkZone(node.Location)); err != nil {
			return err
		}
		networkID = network.ID
	}

	existing, err := p.api.GetServerByName(ctx, p.serverName(name))
	if err != nil {
		return err
	}
	if existing != nil {
		return p.api.StartServer(ctx, existing, networkID)
	}

	image := node.Box
	if image == "" {
		image = p.settings.Image
	}

	_, err = p.api.CreateServer(ctx, ServerCreateOpts{
		Name:       p.serverName(name),
		Image:      image,
		ServerType: node.ServerType,
		Location:   node.Location,
		SSHKeys:    []string{key.Name},
		Labels:     labels.NewLabelBuilder(stack).WithNode(name).WithRunIfSet(p.settings.RunID).Build(),
		NetworkID:  networkID,
	})
	return err
}

// Destroy deletes the node's server. The shared SSH key and network stay.
func (p *Provider) Destroy(ctx context.Context, name string) error {
	return p.api.DeleteServer(ctx, p.serverName(name))
}

// IsRunning reports whether the node's server exists and runs.
func (p *Provider) IsRunning(ctx context.Context, name string) (bool, error) {
	server, err := p.api.GetServerByName(ctx, p.serverName(name))
	if err != nil {
		return false, err
	}
	return server != nil && server.Status == hcloud.ServerStatusRunning, nil
}

// ResourceNetwork reads the node's addresses from its server.
func (p *Provider) ResourceNetwork(ctx context.Context, name string) (provisioning.ResourceNetwork, error) {
	node, err := p.node(name)
	if err != nil {
		return provisioning.ResourceNetwork{}, err
	}
	server, err := p.api.GetServerByName(ctx, p.serverName(name))
	if err != nil {
		return provisioning.ResourceNetwork{}, err
	}
	if server == nil {
		return provisioning.ResourceNetwork{}, fmt.Errorf("server %s does not exist", p.serverName(name))
	}

	public := ServerIPv4(server)
	if public == "" {
		return provisioning.ResourceNetwork{}, fmt.Errorf("server %s has no public IPv4", server.Name)
	}
	return provisioning.ResourceNetwork{
		PublicIP:  public,
		PrivateIP: ServerPrivateIP(server),
		User:      node.User,
		Hostname:  server.Name,
		KeyFile:   p.settings.KeyFile,
	}, nil
}
