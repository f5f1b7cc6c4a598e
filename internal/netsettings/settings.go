// Package netsettings persists how to reach every node of a configuration.
//
// The settings file maps node names to connection records. It is read at
// the start of a run, updated as nodes become reachable and rewritten in
// full at the end of the run, including runs where some nodes failed.
package netsettings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imamik/stagehand/internal/result"
)

// Record holds the connection parameters of a single node.
// Field order is the order used on disk.
type Record struct {
	Network           string `yaml:"network,omitempty"`
	KeyFile           string `yaml:"keyfile,omitempty"`
	PrivateIP         string `yaml:"private_ip,omitempty"`
	User              string `yaml:"whoami,omitempty"`
	Hostname          string `yaml:"hostname,omitempty"`
	DockerContainerID string `yaml:"docker_container_id,omitempty"`
}

// WithNetwork returns a copy of the record that connects through address.
func (r Record) WithNetwork(address string) Record {
	r.Network = address
	return r
}

// Settings is the in-memory node name to record mapping.
// It is not safe for concurrent use.
type Settings struct {
	nodes map[string]Record
}

// New returns empty settings.
func New() *Settings {
	return &Settings{nodes: make(map[string]Record)}
}

// Load reads settings from path.
func Load(path string) result.Result[*Settings] {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return result.Err[*Settings](fmt.Errorf("failed to read network settings: %w", err))
	}

	s, err := Parse(data)
	if err != nil {
		return result.Err[*Settings](fmt.Errorf("%w in %s", err, path))
	}
	return result.Ok(s)
}

// Parse decodes settings in their on-disk form.
func Parse(data []byte) (*Settings, error) {
	nodes := make(map[string]Record)
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse network settings: %w", err)
	}
	if nodes == nil {
		nodes = make(map[string]Record)
	}
	return &Settings{nodes: nodes}, nil
}

// LoadOrNew reads settings from path, returning empty settings when the file
// does not exist yet.
func LoadOrNew(path string) (*Settings, error) {
	r := Load(path)
	if r.IsErr() && errors.Is(r.Err(), fs.ErrNotExist) {
		return New(), nil
	}
	return r.Unwrap()
}

// NodeSettings returns the record stored for name. Callers must only ask for
// nodes whose reachability has been established; an unknown name panics.
func (s *Settings) NodeSettings(name string) Record {
	rec, ok := s.nodes[name]
	if !ok {
		panic(fmt.Sprintf("netsettings: no network settings for node %q", name))
	}
	return rec
}

// Lookup returns the record stored for name, if any.
func (s *Settings) Lookup(name string) (Record, bool) {
	rec, ok := s.nodes[name]
	return rec, ok
}

// Add stores rec for name, replacing any existing record.
func (s *Settings) Add(name string, rec Record) {
	s.nodes[name] = rec
}

// Remove drops the record of name, if any.
func (s *Settings) Remove(name string) {
	delete(s.nodes, name)
}

// Len returns the number of stored nodes.
func (s *Settings) Len() int {
	return len(s.nodes)
}

// Names returns the stored node names in sorted order.
func (s *Settings) Names() []string {
	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal encodes the settings in their on-disk form.
func (s *Settings) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s.nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal network settings: %w", err)
	}
	return data, nil
}

// Store rewrites the file at path with the full current mapping.
func (s *Settings) Store(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".network_settings-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write network settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write network settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set settings permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace network settings %s: %w", path, err)
	}
	return nil
}

// EnvFormat renders the settings as node_field=value lines, sorted by node.
func (s *Settings) EnvFormat() string {
	var b strings.Builder
	for _, name := range s.Names() {
		rec := s.nodes[name]
		for _, kv := range [][2]string{
			{"network", rec.Network},
			{"keyfile", rec.KeyFile},
			{"private_ip", rec.PrivateIP},
			{"whoami", rec.User},
			{"hostname", rec.Hostname},
			{"docker_container_id", rec.DockerContainerID},
		} {
			if kv[1] == "" {
				continue
			}
			fmt.Fprintf(&b, "%s_%s=%s\n", name, kv[0], kv[1])
		}
	}
	return b.String()
}
