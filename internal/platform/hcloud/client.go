package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerCreateOpts holds all parameters for creating a server.
type ServerCreateOpts struct {
	Name       string
	Image      string
	ServerType string
	Location   string
	SSHKeys    []string
	Labels     map[string]string
	// NetworkID attaches the server to a private network when non-zero.
	NetworkID int64
}

// ServerProvisioner creates, inspects and deletes servers.
type ServerProvisioner interface {
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error)
	DeleteServer(ctx context.Context, name string) error
	// GetServerByName returns the server, or nil if it does not exist.
	GetServerByName(ctx context.Context, name string) (*hcloud.Server, error)
	// StartServer attaches an existing server to the network and powers it on
	// as needed.
	StartServer(ctx context.Context, server *hcloud.Server, networkID int64) error
}

// SSHKeyManager manages the uploaded login keys.
type SSHKeyManager interface {
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKey(ctx context.Context, name string) error
}

// NetworkManager manages private networks.
type NetworkManager interface {
	EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error)
	EnsureSubnet(ctx context.Context, network *hcloud.Network, ipRange, networkZone string) error
}

// CloudAPI is everything Provider needs from the cloud.
type CloudAPI interface {
	ServerProvisioner
	SSHKeyManager
	NetworkManager
}
