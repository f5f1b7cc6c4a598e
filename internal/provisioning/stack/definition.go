package stack

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"
)

// Definition is a compose-style stack file. Only the service keys are
// interpreted; everything else is carried through unchanged.
type Definition struct {
	top      map[string]json.RawMessage
	services map[string]json.RawMessage
}

// LoadDefinition reads a stack file.
func LoadDefinition(path string) (*Definition, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses a stack file.
func ParseDefinition(data []byte) (*Definition, error) {
	top := map[string]json.RawMessage{}
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse stack definition: %w", err)
	}

	services := map[string]json.RawMessage{}
	if raw, ok := top["services"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &services); err != nil {
			return nil, fmt.Errorf("failed to parse stack services: %w", err)
		}
	}
	return &Definition{top: top, services: services}, nil
}

// ServiceNames returns the sorted service names.
func (d *Definition) ServiceNames() []string {
	names := make([]string, 0, len(d.services))
	for name := range d.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns a copy holding only the services named in names.
func (d *Definition) Select(names []string) *Definition {
	keep := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		if raw, ok := d.services[name]; ok {
			keep[name] = raw
		}
	}

	top := make(map[string]json.RawMessage, len(d.top))
	for k, v := range d.top {
		top[k] = v
	}
	return &Definition{top: top, services: keep}
}

// Marshal renders the definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.top)+1)
	for k, v := range d.top {
		out[k] = v
	}
	services, err := json.Marshal(d.services)
	if err != nil {
		return nil, fmt.Errorf("failed to encode services: %w", err)
	}
	out["services"] = services

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stack definition: %w", err)
	}
	return data, nil
}

// Store writes the definition to path.
func (d *Definition) Store(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write stack definition: %w", err)
	}
	return nil
}
