package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the tool.
const EnvPrefix = "STAGEHAND"

// ToolConfig holds operator settings shared by all runs.
type ToolConfig struct {
	HCloud   HCloudCredentials `mapstructure:"hcloud"`
	SSH      SSHSettings       `mapstructure:"ssh"`
	Recipes  RecipesSettings   `mapstructure:"recipes"`
	Publish  PublishSettings   `mapstructure:"publish"`
	Database DatabaseProbe     `mapstructure:"database"`
}

// HCloudCredentials configure access to the Hetzner Cloud API.
type HCloudCredentials struct {
	Token string `mapstructure:"token"`
	// Image is used for cloud nodes without a box.
	Image string `mapstructure:"image"`
}

// SSHSettings configure connections to provisioned servers.
type SSHSettings struct {
	KeyFile string `mapstructure:"key_file"`
	Port    int    `mapstructure:"port"`
}

// RecipesSettings locate the provisioning cookbooks uploaded to nodes.
type RecipesSettings struct {
	Path string `mapstructure:"path"`
}

// PublishSettings configure uploading the network settings to S3 compatible
// storage after a run.
type PublishSettings struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// PathStyle addresses buckets as endpoint/bucket, as MinIO expects.
	PathStyle bool `mapstructure:"path_style"`
}

// Enabled reports whether enough is configured to publish.
func (p PublishSettings) Enabled() bool {
	return p.Bucket != "" && p.Endpoint != ""
}

// DatabaseProbe holds credentials used to health check database containers.
type DatabaseProbe struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// toolDefaults doubles as the list of keys bound to the environment.
var toolDefaults = map[string]any{
	"hcloud.token":       "",
	"hcloud.image":       "",
	"ssh.key_file":       "",
	"ssh.port":           22,
	"recipes.path":       "",
	"publish.endpoint":   "",
	"publish.region":     "us-east-1",
	"publish.bucket":     "",
	"publish.prefix":     "",
	"publish.access_key": "",
	"publish.secret_key": "",
	"publish.path_style": false,
	"database.user":      "skysql",
	"database.password":  "skysql",
}

// ToolConfigDir returns the directory holding the tool configuration file.
func ToolConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, "stagehand"), nil
}

// LoadToolConfig reads the tool configuration. An explicit file must exist;
// without one the default location is searched and a missing file is fine.
// Environment variables override file values.
func LoadToolConfig(file string) (*ToolConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if dir, err := ToolConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, val := range toolDefaults {
		v.SetDefault(key, val)
	}
	// The hcloud CLI convention is honoured as a fallback.
	if err := v.BindEnv("hcloud.token", EnvPrefix+"_HCLOUD_TOKEN", "HCLOUD_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read tool config: %w", err)
		}
	}

	var tc ToolConfig
	decoderConfig := func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		)
	}
	if err := v.Unmarshal(&tc, decoderConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool config: %w", err)
	}

	if tc.SSH.KeyFile != "" {
		tc.SSH.KeyFile = expandHome(tc.SSH.KeyFile)
	}
	return &tc, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
