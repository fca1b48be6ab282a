// =============================================================================
// Mission Sheet Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main command of the tool. It
// runs the whole pipeline once and prints the outcome.
//
// COMMAND USAGE:
//   missions convert [flags]
//
// FLAGS:
//   --sheet-url   : Sharing URL of the mission sheet
//   --item-list   : Path to the list of valid item IDs
//   --output      : Path of the missions JSON file
//   --input       : Local .csv or .xlsx file to read instead of downloading
//   --format      : Export format to download (csv or xlsx)
//   --dry-run     : Validate without writing the missions file
//
// EXIT CODES (configurable under exit_codes):
//   0 : success, or no missions
//   1 : fatal error (item list, URL, download, write)
//   2 : validation failure
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mission-sheet-converter/internal/config"
	"github.com/ginjaninja78/mission-sheet-converter/internal/converter"
)

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

// newConvertCmd creates the 'convert' command.
func newConvertCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Download the mission sheet and write missions.json",
		Long: `The convert command downloads the mission sheet, validates every row and
writes the missions file.

If any row fails validation, every problem is listed and the existing
missions file is left untouched. Warnings are logged but do not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversion(cmd, opts, dryRun)
		},
	}

	addSourceFlags(cmd.Flags())

	// --dry-run flag: Validate only.
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing the missions file")

	return cmd
}

// =============================================================================
// COMMAND EXECUTION
// =============================================================================

// runConversion loads the configuration, runs the pipeline and maps the
// outcome to an exit code.
func runConversion(cmd *cobra.Command, opts *rootOptions, dryRun bool) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return configExitError(cfg, err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return NewExitError(cfg.ExitCodes.FatalCode(), err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// =========================================================================
	// STEP 2: RUN THE PIPELINE
	// =========================================================================

	conv, err := converter.New(cfg,
		converter.WithLogger(logger.With("command", cmd.Name())),
		converter.WithDryRun(dryRun),
		converter.WithUserAgent("mission-sheet-converter/"+Version),
	)
	if err != nil {
		return NewExitError(cfg.ExitCodes.FatalCode(), err.Error())
	}

	fmt.Fprintln(cmd.OutOrStdout(), "--- Starting Mission Conversion ---")
	result := conv.Run(cmd.Context())

	// =========================================================================
	// STEP 3: REPORT
	// =========================================================================

	printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, result)
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal script time: %.4f seconds.\n", time.Since(startTime).Seconds())

	code := result.ExitCode(cfg.ExitCodes)
	if code == 0 {
		return nil
	}
	if result.Outcome == converter.OutcomeFatal {
		return NewExitError(code, result.Err.Error())
	}
	// The report above already explains the failure.
	return NewExitError(code, "")
}

// printReport writes the human-readable outcome.
func printReport(out, errOut io.Writer, cfg *config.MainConfig, result converter.Result) {
	switch result.Outcome {
	case converter.OutcomeValidationFailed:
		fmt.Fprintln(errOut, "\n--- Validation Failed ---")
		fmt.Fprintf(errOut, "%d error(s) found. '%s' was NOT generated.\n", len(result.Errors), cfg.OutputPath)
		fmt.Fprint(errOut, "Please fix these issues in your Google Sheet or item list and try again:\n\n")
		for i, e := range result.Errors {
			fmt.Fprintf(errOut, "%d. %s\n", i+1, e.Error())
		}
		if result.ErrorLogPath != "" {
			fmt.Fprintf(errOut, "\nFull report written to '%s'.\n", result.ErrorLogPath)
		}

	case converter.OutcomeNoMissions:
		fmt.Fprintln(out, "\n--- No Missions Processed ---")
		fmt.Fprintln(out, "No missions were successfully processed. No output file generated.")

	case converter.OutcomeSuccess:
		fmt.Fprintln(out, "\n--- Success ---")
		fmt.Fprintf(out, "Successfully processed %d missions.\n", len(result.Missions))
		if result.DryRun {
			fmt.Fprintf(out, "Dry run: '%s' was not written.\n", cfg.OutputPath)
		} else {
			fmt.Fprintf(out, "Output file created: '%s'\n", result.OutputFile)
		}
		if len(result.Warnings) > 0 {
			fmt.Fprintf(out, "%d warning(s) were logged.\n", len(result.Warnings))
		}

	case converter.OutcomeFatal:
		fmt.Fprintln(errOut, "\n--- Conversion Halted ---")
	}
}
