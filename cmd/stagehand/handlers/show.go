package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/imamik/stagehand/internal/netsettings"
)

// Output formats of show network-config.
const (
	FormatYAML = "yaml"
	FormatEnv  = "env"
)

// ShowOptions are the flags of the show network-config command.
type ShowOptions struct {
	Format         string
	Published      bool
	ToolConfigFile string
}

// ShowNetworkConfig writes the network settings of the configuration at
// target to w.
func ShowNetworkConfig(ctx context.Context, w io.Writer, target string, opts ShowOptions) error {
	if opts.Format != FormatYAML && opts.Format != FormatEnv {
		return fmt.Errorf("unknown format %q, use %s or %s", opts.Format, FormatYAML, FormatEnv)
	}

	cfg, err := loadConfiguration(target)
	if err != nil {
		return err
	}

	var settings *netsettings.Settings
	if opts.Published {
		settings, err = fetchPublished(ctx, cfg.StackName(), opts.ToolConfigFile)
	} else {
		settings, err = netsettings.Load(cfg.NetworkSettingsFile()).Unwrap()
	}
	if err != nil {
		return err
	}

	if opts.Format == FormatEnv {
		_, err = io.WriteString(w, settings.EnvFormat())
		return err
	}
	data, err := settings.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func fetchPublished(ctx context.Context, stack, toolConfigFile string) (*netsettings.Settings, error) {
	tool, err := loadToolConfig(toolConfigFile)
	if err != nil {
		return nil, err
	}
	publisher, err := newPublisher(tool.Publish)
	if err != nil {
		return nil, err
	}
	data, err := publisher.Fetch(ctx, stack)
	if err != nil {
		return nil, err
	}
	return netsettings.Parse(data)
}
