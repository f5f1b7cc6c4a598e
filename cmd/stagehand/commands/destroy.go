package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stagehand/cmd/stagehand/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	opts := handlers.DestroyOptions{}

	cmd := &cobra.Command{
		Use:   "destroy <config-dir>[/<node>]",
		Short: "Remove the machines of a configuration",
		Long: `Destroy removes the servers of cloud nodes, or the whole stack of a
docker configuration, and drops their entries from network_settings.yaml.

The SSH key uploaded for the configuration is left in place.

Example:
  stagehand destroy ./replication
  stagehand destroy ./replication/node_001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ToolConfigFile = toolConfigFlag(cmd)
			return handlers.Destroy(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Labels, "labels", nil, "Only destroy nodes carrying one of these labels")
	cmd.Flags().BoolVar(&opts.Unpublish, "unpublish", false, "Also remove the published network settings")

	return cmd
}
