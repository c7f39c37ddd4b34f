package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "editorial",
		Short:         "Editorial workflow operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newFeesCommand())
	rootCmd.AddCommand(newStatesCommand())
	rootCmd.AddCommand(newAssignmentsCommand(ctx))
	rootCmd.AddCommand(newReplayPaymentCommand(ctx))

	return rootCmd
}
