// =============================================================================
// Mission Sheet Converter - Schema Command
// =============================================================================
//
// This file defines the 'schema' command, which prints a JSON Schema for
// missions.json built from the configured category table. Consumers of the
// missions file can validate against it.
//
// COMMAND USAGE:
//   missions schema [--output schema.json]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mission-sheet-converter/internal/jsonwriter"
	"github.com/ginjaninja78/mission-sheet-converter/pkg/utils"
)

// newSchemaCmd creates the 'schema' command.
func newSchemaCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of missions.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// --output here names the schema file, so source flags are not bound.
			cfg, err := opts.readConfig(cmd)
			if err != nil {
				return configExitError(cfg, err)
			}

			data, err := jsonwriter.GenerateSchema(cfg.Categories)
			if err != nil {
				return NewExitError(cfg.ExitCodes.FatalCode(), err.Error())
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := utils.WriteFileAtomic(output, data, 0o644); err != nil {
				return NewExitError(cfg.ExitCodes.FatalCode(), fmt.Sprintf("failed to write schema: %v", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema written to '%s'\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the schema to this file instead of stdout")

	return cmd
}
