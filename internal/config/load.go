package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration addressed by target, which is either a
// configuration directory or "<configuration directory>/<node>". When labels
// are given, NodeNames only returns nodes carrying at least one of them.
func Load(target string, labels ...string) (*Configuration, error) {
	dir, node, err := splitTarget(target)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFile(filepath.Join(dir, TemplateFileName))
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration path: %w", err)
	}
	cfg.path = abs
	if cfg.Name == "" {
		cfg.Name = filepath.Base(abs)
	}

	if node != "" {
		if _, ok := cfg.Nodes[node]; !ok {
			return nil, fmt.Errorf("node %q is not defined in %s", node, abs)
		}
		cfg.node = node
	}
	cfg.labels = labels

	return cfg, nil
}

// splitTarget separates a configuration directory from an optional node.
func splitTarget(target string) (dir, node string, err error) {
	target = filepath.Clean(target)
	if isConfigurationDirectory(target) {
		return target, "", nil
	}

	parent := filepath.Dir(target)
	if isConfigurationDirectory(parent) {
		return parent, filepath.Base(target), nil
	}

	return "", "", fmt.Errorf("specified path %s does not point to a configuration directory", target)
}

func isConfigurationDirectory(path string) bool {
	info, err := os.Stat(filepath.Join(path, TemplateFileName))
	return err == nil && !info.IsDir()
}

// LoadFile reads and parses a template file.
func LoadFile(path string) (*Configuration, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]any
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Configuration
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
