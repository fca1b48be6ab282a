// =============================================================================
// Mission Sheet Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It runs the same pipeline as
// 'convert' but never writes the missions file or archives anything, so it
// is safe to run against the live sheet at any time.
//
// COMMAND USAGE:
//   missions validate [flags]
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"
)

// newValidateCmd creates the 'validate' command.
func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the mission sheet without writing anything",
		Long: `The validate command downloads and checks the mission sheet exactly like
convert, then stops before writing. Exit codes are the same as convert's.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversion(cmd, opts, true)
		},
	}

	addSourceFlags(cmd.Flags())

	return cmd
}
