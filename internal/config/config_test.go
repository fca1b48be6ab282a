package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultSheetURL, cfg.SheetURL)
	assert.Equal(t, "https://docs.google.com", cfg.ExportBaseURL)
	assert.Equal(t, "csv", cfg.SourceFormat)
	assert.Equal(t, DefaultItemListPath, cfg.ItemListPath)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, ",", cfg.CSVSettings.Delimiter)
	assert.Equal(t, 1, cfg.CSVSettings.HeaderRows)
	assert.Equal(t, mission.DefaultCategoryTable(), cfg.Categories)

	assert.Equal(t, 1, cfg.ExitCodes.FatalCode())
	assert.Equal(t, 2, cfg.ExitCodes.ValidationFailureCode())
	assert.Equal(t, 0, cfg.ExitCodes.NoMissionsCode())

	require.NoError(t, cfg.Validate())
}

func TestLoadMainConfig(t *testing.T) {
	path := writeConfig(t, `
sheet_url: "https://docs.google.com/spreadsheets/d/ABC123/edit#gid=55"
item_list_path: items.txt
output_path: out/missions.json
http_timeout: 15s
log_level: debug
csv_settings:
  delimiter: ";"
  encoding: windows-1252
categories:
  Common:
    weight: 5.5
    reward:
      min_amount: 1
      max_amount: 3
transformation_rules:
  - field: category
    actions:
      - type: trim
validation:
  strict_amount_range: true
exit_codes:
  validation_failure: 0
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "items.txt", cfg.ItemListPath)
	assert.Equal(t, "out/missions.json", cfg.OutputPath)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ";", cfg.CSVSettings.Delimiter)
	assert.Equal(t, "windows-1252", cfg.CSVSettings.Encoding)
	assert.Equal(t, 1, cfg.CSVSettings.HeaderRows)
	assert.True(t, cfg.Validation.StrictAmountRange)

	require.Len(t, cfg.Categories, 1)
	common, ok := cfg.Categories.Lookup("Common")
	require.True(t, ok)
	assert.Equal(t, mission.Weight(5.5), common.Weight)
	assert.Equal(t, mission.Reward{MinAmount: 1, MaxAmount: 3}, common.Reward)

	require.Len(t, cfg.TransformationRules, 1)
	assert.Equal(t, "category", cfg.TransformationRules[0].Field)

	assert.Equal(t, 0, cfg.ExitCodes.ValidationFailureCode())
	assert.Equal(t, 1, cfg.ExitCodes.FatalCode())

	require.NoError(t, cfg.Validate())
}

func TestLoadMainConfigErrors(t *testing.T) {
	_, err := LoadMainConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadMainConfig(writeConfig(t, "sheet_url: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(writeConfig(t, "log_level: [oops"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *MainConfig)
		wantErr string
	}{
		{"malformed sheet url", func(c *MainConfig) { c.SheetURL = "https://example.com/nope" }, "invalid Google Sheets URL"},
		{"local input skips url check", func(c *MainConfig) { c.SheetURL = "nope"; c.InputPath = "rows.csv" }, ""},
		{"bad source format", func(c *MainConfig) { c.SourceFormat = "ods" }, "source_format"},
		{"bad log level", func(c *MainConfig) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *MainConfig) { c.LogFormat = "xml" }, "log_format"},
		{"negative timeout", func(c *MainConfig) { c.HTTPTimeout = -time.Second }, "http_timeout"},
		{"bad header rows", func(c *MainConfig) { c.CSVSettings.HeaderRows = -1 }, "header_rows"},
		{"bad category", func(c *MainConfig) {
			c.Categories = mission.CategoryTable{"Odd": {Reward: mission.Reward{MinAmount: 5, MaxAmount: 1}}}
		}, "invalid categories"},
		{"unknown rule field", func(c *MainConfig) {
			c.TransformationRules = []TransformationRule{{Field: "colour"}}
		}, "unknown field"},
		{"unknown rule type", func(c *MainConfig) {
			c.TransformationRules = []TransformationRule{{Field: "items", Actions: []TransformationAction{{Type: "explode"}}}}
		}, "unknown type"},
		{"exit code out of range", func(c *MainConfig) {
			code := 300
			c.ExitCodes.Fatal = &code
		}, "exit_codes.fatal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyOverridesFromEnvironment(t *testing.T) {
	t.Setenv("MISSIONS_SHEET_URL", "https://docs.google.com/spreadsheets/d/ENV/edit")
	t.Setenv("MISSIONS_OUTPUT_PATH", "env.json")
	t.Setenv("MISSIONS_HTTP_TIMEOUT", "5s")

	cfg := Default()
	ApplyOverrides(cfg, NewViper())

	assert.Equal(t, "https://docs.google.com/spreadsheets/d/ENV/edit", cfg.SheetURL)
	assert.Equal(t, "env.json", cfg.OutputPath)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, DefaultItemListPath, cfg.ItemListPath)
}

func TestApplyOverridesExplicitValues(t *testing.T) {
	v := NewViper()
	v.Set("item_list_path", "flag-items.txt")
	v.Set("source_format", "xlsx")

	cfg := Default()
	ApplyOverrides(cfg, v)

	assert.Equal(t, "flag-items.txt", cfg.ItemListPath)
	assert.Equal(t, "xlsx", cfg.SourceFormat)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)

	ApplyOverrides(cfg, nil)
	assert.Equal(t, "flag-items.txt", cfg.ItemListPath)
}
