package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stagehand/cmd/stagehand/handlers"
)

// Keygen returns the keygen command.
func Keygen() *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "Generate the SSH key pair used to log in to cloud nodes",
		Long: `Keygen writes an RSA private key to <path> and its public half to
<path>.pub. Point ssh.key_file in the tool configuration at <path>.

Existing keys are never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Keygen(cmd.OutOrStdout(), args[0], bits)
		},
	}

	cmd.Flags().IntVar(&bits, "bits", handlers.DefaultKeyBits, "RSA key size")

	return cmd
}
