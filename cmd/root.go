package cmd

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd builds the relay command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Length-prefixed TCP frame relay",
		Long: `relay accepts TCP clients and rebroadcasts every frame it receives to all
connected clients, the sender included.

A frame is an 8-byte big-endian payload length followed by the payload.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")

	rootCmd.AddCommand(
		serveCmd(opts),
		cliCmd(),
		sendCmd(),
		versionCmd(),
	)
	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
