package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh command tree and returns stdout, stderr and the
// error.
func executeCommand(args ...string) (string, string, error) {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if args == nil {
		// A nil slice makes cobra fall back to os.Args.
		args = []string{}
	}
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

const csvHeader = "missionId,names,category,requirementType,items,minAmount,maxAmount\n"

// sheetFixture serves body as the CSV export and prepares an item list.
type sheetFixture struct {
	dir      string
	itemList string
	output   string
	server   *httptest.Server
}

func newSheetFixture(t *testing.T, body string) *sheetFixture {
	t.Helper()

	dir := t.TempDir()
	f := &sheetFixture{
		dir:      dir,
		itemList: filepath.Join(dir, "itemlist_dump.txt"),
		output:   filepath.Join(dir, "missions.json"),
	}
	require.NoError(t, os.WriteFile(f.itemList, []byte("STONE\nWOOD\n"), 0o644))

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)

	// The export host comes from the environment; everything else from flags.
	t.Setenv("MISSIONS_EXPORT_BASE_URL", f.server.URL)

	return f
}

func (f *sheetFixture) args(command string, extra ...string) []string {
	args := []string{
		command,
		"--sheet-url", "https://docs.google.com/spreadsheets/d/ABC123/edit#gid=0",
		"--item-list", f.itemList,
		"--output", f.output,
	}
	return append(args, extra...)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand("version")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Mission Sheet Converter")
	assert.Contains(t, stdout, "Version:    "+Version)
	assert.Contains(t, stdout, runtime.Version())
}

func TestRootWithoutSubcommandPrintsHelp(t *testing.T) {
	stdout, _, err := executeCommand()
	require.NoError(t, err)
	assert.Contains(t, stdout, "convert")
	assert.Contains(t, stdout, "validate")
	assert.Contains(t, stdout, "schema")
}

func TestConvertSuccess(t *testing.T) {
	f := newSheetFixture(t, csvHeader+"m1,Give Stone,Small,collect,STONE,2,4\n")

	stdout, _, err := executeCommand(f.args("convert")...)
	require.NoError(t, err)

	assert.Contains(t, stdout, "--- Success ---")
	assert.Contains(t, stdout, "Successfully processed 1 missions.")
	assert.Regexp(t, `Total script time: \d+\.\d{4} seconds\.`, stdout)

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "m1", records[0]["id"])
}

func TestConvertValidationFailure(t *testing.T) {
	f := newSheetFixture(t, csvHeader+"m2,X,Small,collect,LAVA,1,2\n")

	_, stderr, err := executeCommand(f.args("convert")...)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Empty(t, exitErr.Message)

	assert.Contains(t, stderr, "--- Validation Failed ---")
	assert.Contains(t, stderr, "1. Row 2 (Mission: m2): invalid item ID 'LAVA'")
	assert.NoFileExists(t, f.output)
}

func TestConvertNoMissions(t *testing.T) {
	f := newSheetFixture(t, csvHeader)

	stdout, _, err := executeCommand(f.args("convert")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "--- No Missions Processed ---")
	assert.NoFileExists(t, f.output)
}

func TestConvertFatal(t *testing.T) {
	f := newSheetFixture(t, csvHeader)
	require.NoError(t, os.Remove(f.itemList))

	_, _, err := executeCommand(f.args("convert")...)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, exitErr.Message, "failed to load item list")
}

func TestConvertDryRunAndValidate(t *testing.T) {
	f := newSheetFixture(t, csvHeader+"m1,Give Stone,Small,collect,STONE,2,4\n")

	stdout, _, err := executeCommand(f.args("convert", "--dry-run")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "was not written")
	assert.NoFileExists(t, f.output)

	stdout, _, err = executeCommand(f.args("validate")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "--- Success ---")
	assert.NoFileExists(t, f.output)
}

func TestConvertReadsConfigFile(t *testing.T) {
	f := newSheetFixture(t, csvHeader+"m1,Give Stone,Small,collect,STONE,9,4\n")

	cfgPath := filepath.Join(f.dir, "config.yaml")
	cfgYAML := "item_list_path: " + f.itemList + "\n" +
		"output_path: " + f.output + "\n" +
		"sheet_url: https://docs.google.com/spreadsheets/d/ABC123/edit\n" +
		"validation:\n  strict_amount_range: true\n" +
		"exit_codes:\n  validation_failure: 7\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	_, _, err := executeCommand("convert", "--config", cfgPath)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 7, exitErr.Code)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	f := newSheetFixture(t, csvHeader+"m1,Give Stone,Small,collect,STONE,2,4\n")
	t.Setenv("MISSIONS_OUTPUT_PATH", filepath.Join(f.dir, "from-env.json"))

	_, _, err := executeCommand(f.args("convert")...)
	require.NoError(t, err)

	assert.FileExists(t, f.output)
	assert.NoFileExists(t, filepath.Join(f.dir, "from-env.json"))
}

func TestConvertMissingExplicitConfig(t *testing.T) {
	_, _, err := executeCommand("convert", "--config", filepath.Join(t.TempDir(), "nope.yaml"))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, exitErr.Message, "failed to read config file")
}

func TestInvalidConfigUsesConfiguredFatalCode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "sheet_url: https://example.com/not-a-sheet\n" +
		"exit_codes:\n  fatal: 9\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	for _, command := range []string{"convert", "validate", "schema"} {
		t.Run(command, func(t *testing.T) {
			_, _, err := executeCommand(command, "--config", cfgPath)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 9, exitErr.Code)
			assert.Contains(t, exitErr.Message, "invalid configuration")
		})
	}
}

func TestSchemaCommand(t *testing.T) {
	stdout, _, err := executeCommand("schema")
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &schema))
	assert.Equal(t, "array", schema["type"])

	path := filepath.Join(t.TempDir(), "schema.json")
	stdout, _, err = executeCommand("schema", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)
	assert.FileExists(t, path)
}
