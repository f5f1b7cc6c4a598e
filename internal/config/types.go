package config

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
)

// Provider selects the backend that brings up the nodes.
type Provider string

const (
	ProviderHCloud Provider = "hcloud"
	ProviderDocker Provider = "docker"
)

// File names inside a configuration directory.
const (
	TemplateFileName                   = "template.yaml"
	NetworkSettingsFileName            = "network_settings.yaml"
	DockerConfigurationFileName        = "docker-configuration.yaml"
	DockerPartialConfigurationFileName = "docker-configuration-partial.yaml"
)

// Configuration is a loaded run configuration, optionally narrowed to a
// single node or to a set of labels.
type Configuration struct {
	Name     string          `mapstructure:"name" yaml:"name"`
	Provider Provider        `mapstructure:"provider" yaml:"provider"`
	HCloud   HCloudSettings  `mapstructure:"hcloud" yaml:"hcloud,omitempty"`
	Nodes    map[string]Node `mapstructure:"nodes" yaml:"nodes"`

	path   string
	node   string
	labels []string
}

// HCloudSettings are the defaults for every node of an hcloud configuration.
type HCloudSettings struct {
	Location   string `mapstructure:"location" yaml:"location,omitempty"`
	ServerType string `mapstructure:"server_type" yaml:"server_type,omitempty"`
	// Network is the name of a private network the servers are attached to.
	Network string `mapstructure:"network" yaml:"network,omitempty"`
}

// Node is the desired specification of one node.
type Node struct {
	Box             string    `mapstructure:"box" yaml:"box"`
	User            string    `mapstructure:"user" yaml:"user,omitempty"`
	Labels          []string  `mapstructure:"labels" yaml:"labels,omitempty"`
	CnfTemplatePath string    `mapstructure:"cnf_template_path" yaml:"cnf_template_path,omitempty"`
	ServerType      string    `mapstructure:"server_type" yaml:"server_type,omitempty"`
	Location        string    `mapstructure:"location" yaml:"location,omitempty"`
	Products        []Product `mapstructure:"products" yaml:"products,omitempty"`
}

// Product is a product installed on a node.
type Product struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Version     string `mapstructure:"version" yaml:"version,omitempty"`
	CnfTemplate string `mapstructure:"cnf_template" yaml:"cnf_template,omitempty"`
}

// Path returns the absolute configuration directory.
func (c *Configuration) Path() string {
	return c.path
}

// SingleNode returns the node the configuration was narrowed to, if any.
func (c *Configuration) SingleNode() string {
	return c.node
}

// NodeNames returns the sorted names of the nodes a run operates on.
func (c *Configuration) NodeNames() []string {
	if c.node != "" {
		return []string{c.node}
	}

	names := make([]string, 0, len(c.Nodes))
	for name, node := range c.Nodes {
		if len(c.labels) > 0 && !node.hasAnyLabel(c.labels) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n Node) hasAnyLabel(labels []string) bool {
	for _, l := range labels {
		if slices.Contains(n.Labels, l) {
			return true
		}
	}
	return false
}

// Node returns the specification of name.
func (c *Configuration) Node(name string) (Node, bool) {
	n, ok := c.Nodes[name]
	return n, ok
}

// StackName is the docker stack identity of the configuration.
func (c *Configuration) StackName() string {
	return c.Name
}

// NetworkSettingsFile is where the network settings are stored.
func (c *Configuration) NetworkSettingsFile() string {
	return filepath.Join(c.path, NetworkSettingsFileName)
}

// RoleFile is the provisioning role generated for node.
func (c *Configuration) RoleFile(node string) string {
	return filepath.Join(c.path, node+".json")
}

// NodeConfigFile is the provisioning run list generated for node.
func (c *Configuration) NodeConfigFile(node string) string {
	return filepath.Join(c.path, node+"-config.json")
}

// DockerConfigurationFile is the stack definition holding every service.
func (c *Configuration) DockerConfigurationFile() string {
	return filepath.Join(c.path, DockerConfigurationFileName)
}

// DockerPartialConfigurationFile is the stack definition narrowed to the
// services of the current run.
func (c *Configuration) DockerPartialConfigurationFile() string {
	return filepath.Join(c.path, DockerPartialConfigurationFileName)
}

// HasDockerConfiguration reports whether a stack definition was generated.
func (c *Configuration) HasDockerConfiguration() bool {
	_, err := os.Stat(c.DockerConfigurationFile())
	return err == nil
}

// CnfTemplatePath returns the directory holding the cnf templates of node,
// resolved against the configuration directory. Empty when none is set.
func (c *Configuration) CnfTemplatePath(node string) string {
	n, ok := c.Nodes[node]
	if !ok || n.CnfTemplatePath == "" {
		return ""
	}
	if filepath.IsAbs(n.CnfTemplatePath) {
		return n.CnfTemplatePath
	}
	return filepath.Join(c.path, n.CnfTemplatePath)
}

// Products returns the products installed on node.
func (c *Configuration) Products(node string) []Product {
	return c.Nodes[node].Products
}
