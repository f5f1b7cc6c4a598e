package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stagehand/cmd/stagehand/handlers"
)

// Up returns the up command.
//
// The up command brings up every selected node of a configuration and
// writes network_settings.yaml next to the template.
func Up() *cobra.Command {
	opts := handlers.UpOptions{}

	cmd := &cobra.Command{
		Use:   "up <config-dir>[/<node>]",
		Short: "Bring up and configure the nodes of a configuration",
		Long: `Up creates the machines of a configuration and configures them.

Cloud nodes are processed one at a time: the server is created, polled over
SSH until it answers, provisioned with chef-solo and checked for the
provisioned marker. A failed node is destroyed and retried up to --attempts
times before the run moves on to the next node.

Docker configurations are deployed as a single stack. Failed deploys are
retried --attempts times, then the tool waits for every task to run and for
the applications inside to report healthy.

How to reach each node is written to network_settings.yaml in the
configuration directory, also when some nodes failed.

Example:
  stagehand up ./replication
  stagehand up ./replication/node_001 --recreate
  stagehand up ./replication --labels first,second --publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ToolConfigFile = toolConfigFlag(cmd)
			return handlers.Up(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Attempts, "attempts", -1, "Bring-up attempts per node, or deploy retries for docker (default depends on the provider)")
	cmd.Flags().BoolVar(&opts.Recreate, "recreate", false, "Destroy existing machines or the existing stack first")
	cmd.Flags().StringSliceVar(&opts.Labels, "labels", nil, "Only bring up nodes carrying one of these labels")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write run metrics in the Prometheus text format to this file")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Upload the network settings to the configured object storage")

	return cmd
}
