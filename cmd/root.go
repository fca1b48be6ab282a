// =============================================================================
// Mission Sheet Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (missions)
//   ├── convertCmd  (missions convert)
//   ├── validateCmd (missions validate)
//   ├── schemaCmd   (missions schema)
//   └── versionCmd  (missions version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Owning the viper instance that flags and MISSIONS_* variables feed
//   3. Loading the configuration and building the logger for subcommands
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/mission-sheet-converter/internal/config"
	"github.com/ginjaninja78/mission-sheet-converter/internal/logging"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// rootOptions holds the values of the persistent flags.
type rootOptions struct {
	// cfgFile holds the path to the main configuration file.
	// This can be overridden using the --config flag.
	cfgFile string

	// verbose forces debug logging.
	verbose bool

	// v resolves flag and environment overrides.
	v *viper.Viper
}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	rootCmd := &cobra.Command{
		// Use is the one-line usage message.
		Use: "missions",

		// Short is a short description shown in the 'help' output.
		Short: "Mission Sheet Converter - Turn the mission spreadsheet into missions.json",

		// Long is a longer description shown in the 'help <command>' output.
		Long: `Mission Sheet Converter downloads the mission spreadsheet as CSV, checks
every row against the category table and the list of valid item IDs, and
writes the missions as JSON for the game server.

Key Features:
  - Every row is checked; all problems are reported in one pass
  - Nothing is written unless the whole sheet is valid
  - Optional archive of the previous missions file
  - Local .csv or .xlsx input for offline runs

Example Usage:
  missions convert                          # Download, validate and write missions.json
  missions convert --sheet-url URL          # Use another sheet
  missions convert --input missions.xlsx    # Read a local workbook instead
  missions validate                         # Check the sheet without writing anything
  missions schema --output schema.json      # Describe missions.json as a JSON Schema

Settings can also come from config.yaml or MISSIONS_* environment variables.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Without a subcommand, print the help message.
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	// --config flag: A missing file at the default path is not an error.
	rootCmd.PersistentFlags().StringVar(
		&opts.cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	// --verbose flag: Enables debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&opts.verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	rootCmd.AddCommand(
		newConvertCmd(opts),
		newValidateCmd(opts),
		newSchemaCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute builds the command tree and runs it.
// This is called by main.main(). A returned *ExitError carries the exit code.
// An interrupt cancels the running download.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// =============================================================================
// CONFIGURATION HELPERS
// =============================================================================

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"sheet-url":  "sheet_url",
	"item-list":  "item_list_path",
	"output":     "output_path",
	"input":      "input_path",
	"format":     "source_format",
	"error-log":  "error_log_path",
	"report-dir": "report_dir",
	"archive":    "archive_dir",
	"log-format": "log_format",
}

// addSourceFlags registers the flags shared by convert and validate.
func addSourceFlags(flags *pflag.FlagSet) {
	flags.String("sheet-url", "", "Google Sheets sharing URL")
	flags.String("item-list", "", "Path to the list of valid item IDs")
	flags.String("output", "", "Path of the missions JSON file")
	flags.String("input", "", "Read rows from a local .csv or .xlsx file instead of downloading")
	flags.String("format", "", "Export format to download: csv or xlsx")
	flags.String("error-log", "", "Write the validation report to this file on failure")
	flags.String("report-dir", "", "Write a run summary into this directory")
	flags.String("archive", "", "Copy the previous missions file into this directory before replacing it")
	flags.String("log-format", "", "Log encoding: console or json")
}

// bindFlags binds the running command's flags to viper keys.
// Binding happens at run time so sibling commands do not overwrite each
// other's bindings.
func (o *rootOptions) bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := o.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig binds the command's source flags, then reads the
// configuration.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	if err := o.bindFlags(cmd); err != nil {
		return nil, err
	}
	return o.readConfig(cmd)
}

// readConfig reads the config file, applies environment and bound flag
// overrides and validates the result. A config that parsed but failed
// validation is returned with the error so its exit codes still apply.
func (o *rootOptions) readConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	var (
		cfg *config.MainConfig
		err error
	)
	if cmd.Flags().Changed("config") {
		// An explicitly named file must exist.
		cfg, err = config.LoadMainConfig(o.cfgFile)
	} else {
		cfg, err = config.LoadOrDefault(o.cfgFile)
	}
	if err != nil {
		return nil, err
	}

	config.ApplyOverrides(cfg, o.v)
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configExitError reports a configuration failure. cfg may be nil when the
// file could not be read at all.
func configExitError(cfg *config.MainConfig, err error) *ExitError {
	code := config.DefaultExitFatal
	if cfg != nil {
		code = cfg.ExitCodes.FatalCode()
	}
	return NewExitError(code, err.Error())
}

// newLogger builds the zap logger for cfg, writing to w.
func newLogger(cfg *config.MainConfig, w io.Writer) (*logging.ZapLogger, error) {
	return logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, w)
}
