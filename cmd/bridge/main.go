package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the bridge command. Running it without a subcommand
// starts the service.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bridge",
		Short:         "Game dialogue translation bridge",
		Long:          "bridge reads dialogue from the game plugin endpoint, translates it\nand pushes the result to overlay clients over a websocket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(
		newServeCmd(),
		newTokenCmd(),
	)

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}
