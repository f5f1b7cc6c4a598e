package testing

import (
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/imamik/stagehand/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configurations.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg    config.Configuration
	files  map[string]string
	target string
	labels []string
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Configuration{
			Name:     "test-stack",
			Provider: config.ProviderDocker,
			Nodes:    map[string]config.Node{},
		},
		files: map[string]string{},
	}
}

// WithName sets the configuration name.
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Name = name
	return newBuilder
}

// WithProvider sets the provider.
func (b *ConfigBuilder) WithProvider(p config.Provider) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Provider = p
	return newBuilder
}

// WithNode adds a node.
func (b *ConfigBuilder) WithNode(name string, node config.Node) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Nodes[name] = node
	return newBuilder
}

// WithNodes adds nodes with a default box.
func (b *ConfigBuilder) WithNodes(names ...string) *ConfigBuilder {
	newBuilder := b.clone()
	for _, name := range names {
		newBuilder.cfg.Nodes[name] = config.Node{Box: "ubuntu-22.04"}
	}
	return newBuilder
}

// WithFile adds a file, relative to the configuration directory.
func (b *ConfigBuilder) WithFile(name, content string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.files[name] = content
	return newBuilder
}

// ForNode narrows the loaded configuration to a single node.
func (b *ConfigBuilder) ForNode(name string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.target = name
	return newBuilder
}

// WithLabels narrows the loaded configuration to labelled nodes.
func (b *ConfigBuilder) WithLabels(labels ...string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.labels = append([]string(nil), labels...)
	return newBuilder
}

// TB is the subset of testing.TB the builder needs. Both *testing.T and
// GinkgoT() satisfy it.
type TB interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// Build writes the configuration directory into a temporary directory and
// loads it.
func (b *ConfigBuilder) Build(t TB) *config.Configuration {
	t.Helper()

	dir := filepath.Join(t.TempDir(), b.cfg.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("create config dir: %v", err)
	}

	data, err := yaml.Marshal(&b.cfg)
	if err != nil {
		t.Fatalf("marshal template: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.TemplateFileName), data, 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}

	for name, content := range b.files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	target := dir
	if b.target != "" {
		target = filepath.Join(dir, b.target)
	}
	cfg, err := config.Load(target, b.labels...)
	if err != nil {
		t.Fatalf("load configuration: %v", err)
	}
	return cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	c := *b
	c.cfg.Nodes = maps.Clone(b.cfg.Nodes)
	c.files = maps.Clone(b.files)
	c.labels = append([]string(nil), b.labels...)
	return &c
}
