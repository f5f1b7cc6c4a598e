package config

import (
	"fmt"
	"regexp"
	"sort"
)

// ValidLocations contains all valid Hetzner Cloud datacenter locations.
// https://docs.hetzner.com/cloud/general/locations/
var ValidLocations = map[string]bool{
	"nbg1": true, // Nuremberg, Germany
	"fsn1": true, // Falkenstein, Germany
	"hel1": true, // Helsinki, Finland
	"ash":  true, // Ashburn, USA
	"hil":  true, // Hillsboro, USA
	"sin":  true, // Singapore
}

// nodeNamePattern keeps node names usable as hostnames, docker service
// names and file names at the same time.
var nodeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Configuration) Validate() error {
	switch c.Provider {
	case ProviderHCloud, ProviderDocker:
	case "":
		return fmt.Errorf("provider is required")
	default:
		return fmt.Errorf("unsupported provider %q: must be %q or %q", c.Provider, ProviderHCloud, ProviderDocker)
	}

	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}

	if c.Provider == ProviderHCloud {
		if err := c.validateLocations(); err != nil {
			return fmt.Errorf("location validation failed: %w", err)
		}
	}

	for _, name := range sortedNodeNames(c.Nodes) {
		if err := validateNode(c.Provider, name, c.Nodes[name]); err != nil {
			return err
		}
	}

	return nil
}

// validateLocations validates the configuration-wide and per-node locations.
func (c *Configuration) validateLocations() error {
	if c.HCloud.Location != "" && !ValidLocations[c.HCloud.Location] {
		return fmt.Errorf("invalid location %q: must be one of %v", c.HCloud.Location, getMapKeys(ValidLocations))
	}

	for _, name := range sortedNodeNames(c.Nodes) {
		node := c.Nodes[name]
		if node.Location != "" && !ValidLocations[node.Location] {
			return fmt.Errorf("node %q has invalid location %q: must be one of %v",
				name, node.Location, getMapKeys(ValidLocations))
		}
	}

	return nil
}

// validateNode checks a single node. Cloud nodes may omit the box and use
// the image from the tool configuration.
func validateNode(provider Provider, name string, node Node) error {
	if !nodeNamePattern.MatchString(name) {
		return fmt.Errorf("invalid node name %q", name)
	}
	if node.Box == "" && provider == ProviderDocker {
		return fmt.Errorf("node %s: box is required", name)
	}
	for i, p := range node.Products {
		if p.Name == "" {
			return fmt.Errorf("node %s: product %d: name is required", name, i)
		}
		if p.CnfTemplate != "" && node.CnfTemplatePath == "" {
			return fmt.Errorf("node %s: product %s sets cnf_template without cnf_template_path", name, p.Name)
		}
	}
	return nil
}

// getMapKeys returns the sorted keys of a map for error messages.
func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNodeNames(nodes map[string]Node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyDefaults applies sensible defaults to the configuration.
func (c *Configuration) ApplyDefaults() {
	if c.Provider == ProviderHCloud {
		if c.HCloud.Location == "" {
			c.HCloud.Location = "fsn1"
		}
		if c.HCloud.ServerType == "" {
			c.HCloud.ServerType = "cx22"
		}
	}

	for name, node := range c.Nodes {
		if node.User == "" && c.Provider == ProviderHCloud {
			node.User = "root"
		}
		if node.Location == "" {
			node.Location = c.HCloud.Location
		}
		if node.ServerType == "" {
			node.ServerType = c.HCloud.ServerType
		}
		c.Nodes[name] = node
	}
}
