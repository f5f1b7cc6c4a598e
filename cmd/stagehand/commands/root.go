// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the stagehand CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stagehand",
		Short:         "Bring up and configure test nodes on Hetzner Cloud or docker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("tool-config", "", "Path to the tool configuration file (default $XDG_CONFIG_HOME/stagehand/config.yaml)")

	cmd.AddCommand(Up())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Show())
	cmd.AddCommand(Keygen())
	cmd.AddCommand(Version())

	return cmd
}

func toolConfigFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("tool-config")
	return path
}
