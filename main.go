// =============================================================================
// Mission Sheet Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Mission Sheet Converter CLI. It runs
// the Cobra command tree and turns the returned error into an exit code.
//
// USAGE:
//   missions convert     - Download the sheet, validate it and write missions.json
//   missions validate    - Validate the sheet without writing anything
//   missions schema      - Print the JSON Schema of missions.json
//   missions version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (sheet locator, fetcher, parsers, validator, writer)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"errors"
	"os"

	"github.com/ginjaninja78/mission-sheet-converter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				os.Stderr.WriteString("Error: " + exitErr.Message + "\n")
			}
			os.Exit(exitErr.Code)
		}
		// Flag and usage errors from cobra.
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
