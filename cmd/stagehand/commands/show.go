package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stagehand/cmd/stagehand/handlers"
)

// Show returns the show command group.
func Show() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show information about a configuration",
	}
	cmd.AddCommand(showNetworkConfig())
	return cmd
}

func showNetworkConfig() *cobra.Command {
	var (
		format    string
		published bool
	)

	cmd := &cobra.Command{
		Use:   "network-config <config-dir>",
		Short: "Print the stored network settings",
		Long: `Print how the nodes of a configuration can be reached.

The yaml format is the content of network_settings.yaml. The env format
prints one node_field=value line per known field, ready to be sourced by
test scripts.

With --published the settings are read from object storage instead of the
local configuration directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ShowNetworkConfig(cmd.Context(), cmd.OutOrStdout(), args[0], handlers.ShowOptions{
				Format:         format,
				Published:      published,
				ToolConfigFile: toolConfigFlag(cmd),
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", handlers.FormatYAML, "Output format: yaml or env")
	cmd.Flags().BoolVar(&published, "published", false, "Read the settings published to object storage")

	return cmd
}
