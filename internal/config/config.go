// =============================================================================
// Mission Sheet Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration.
//
// CONFIGURATION SOURCES (highest precedence first):
//   1. Command-line flags            (--sheet-url, --item-list, ...)
//   2. Environment variables         (MISSIONS_SHEET_URL, MISSIONS_ITEM_LIST_PATH, ...)
//   3. The YAML config file          (config.yaml by default)
//   4. Built-in defaults             (see applyMainConfigDefaults)
//
// Sources 1 and 2 are resolved by viper and folded in by ApplyOverrides.
// The YAML file is read directly with yaml.v3.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
	"github.com/ginjaninja78/mission-sheet-converter/internal/sheet"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultSheetURL is the production mission sheet.
	DefaultSheetURL = "https://docs.google.com/spreadsheets/d/1g_Fn5qVjEgfV0PsRR6tH91PJeQkH-wexDphUM6nU804/edit?usp=sharing"

	// DefaultItemListPath is the item dump read when none is configured.
	DefaultItemListPath = "itemlist_dump.txt"

	// DefaultOutputPath is where missions are written when none is configured.
	DefaultOutputPath = "missions.json"

	// EnvPrefix prefixes every environment override (MISSIONS_SHEET_URL, ...).
	EnvPrefix = "MISSIONS"
)

// Default process exit codes.
const (
	DefaultExitFatal             = 1
	DefaultExitValidationFailure = 2
	DefaultExitNoMissions        = 0
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the application configuration.
type MainConfig struct {
	// =========================================================================
	// SOURCE SETTINGS
	// =========================================================================

	// SheetURL is the sharing URL of the mission spreadsheet.
	SheetURL string `yaml:"sheet_url"`

	// ExportBaseURL is the scheme and host serving spreadsheet exports.
	// Default: "https://docs.google.com"
	ExportBaseURL string `yaml:"export_base_url"`

	// SourceFormat is the export format to download: "csv" or "xlsx".
	// Default: "csv"
	SourceFormat string `yaml:"source_format"`

	// InputPath reads rows from a local .csv or .xlsx file instead of
	// downloading the sheet. Empty means download.
	InputPath string `yaml:"input_path"`

	// XLSXSheetName selects the worksheet when the source is a workbook.
	// Empty selects the first worksheet.
	XLSXSheetName string `yaml:"xlsx_sheet_name"`

	// HTTPTimeout bounds the download, redirects included.
	// Default: 60s
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// CSVSettings controls CSV tokenization.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// REFERENCE DATA
	// =========================================================================

	// ItemListPath is the newline-delimited list of valid item IDs.
	// Default: "itemlist_dump.txt"
	ItemListPath string `yaml:"item_list_path"`

	// Categories replaces the built-in category table when set.
	Categories mission.CategoryTable `yaml:"categories"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputPath is the JSON file written on a clean run.
	// Default: "missions.json"
	OutputPath string `yaml:"output_path"`

	// ArchiveDir receives a timestamped copy of the previous output before it
	// is replaced. Empty disables archiving.
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveByDate files archived copies under YYYY/MM/DD subdirectories.
	ArchiveByDate bool `yaml:"archive_by_date"`

	// ArchiveRetention removes archived copies older than this after each
	// run. Zero keeps everything.
	ArchiveRetention time.Duration `yaml:"archive_retention"`

	// ErrorLogPath receives the validation error report on a failed run.
	// Empty disables the error log.
	ErrorLogPath string `yaml:"error_log_path"`

	// ReportDir receives a text run summary after every run.
	// Empty disables run summaries.
	ReportDir string `yaml:"report_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// TransformationRules are applied to raw row fields before validation.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`

	// Validation tunes the row validator.
	Validation ValidationSettings `yaml:"validation"`

	// ExitCodes maps run outcomes to process exit codes.
	ExitCodes ExitCodes `yaml:"exit_codes"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV payloads.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" or "tab", ";"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of leading rows skipped as headers.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// Encoding is the character encoding of the payload.
	// Any WHATWG encoding label is accepted ("windows-1252", "latin1", ...).
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// StrictQuotes rejects bare quotes inside unquoted fields.
	// Default: false (lazy quotes)
	StrictQuotes bool `yaml:"strict_quotes"`

	// TrimLeadingSpace trims leading white space of every field.
	// Default: false, so category names must match exactly.
	TrimLeadingSpace bool `yaml:"trim_leading_space"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines transformations for one column.
type TransformationRule struct {
	// Field is the column name, one of:
	//   missionId, names, category, requirementType, items, minAmount, maxAmount
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is one of:
	//   - "prepend_string"  : Add Value to the beginning
	//   - "append_string"   : Add Value to the end
	//   - "trim"            : Remove leading and trailing whitespace
	//   - "uppercase"       : Convert to uppercase
	//   - "lowercase"       : Convert to lowercase
	//   - "replace"         : Replace Find with Value
	//   - "regex_replace"   : Replace matches of the Find pattern with Value
	//   - "lookup"          : Replace the whole value using LookupTable
	Type string `yaml:"type"`

	// Value is the parameter for the transformation.
	Value string `yaml:"value"`

	// Find is used for "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used for "lookup". Values not in the table are kept.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// TransformationTypes lists the supported action types.
var TransformationTypes = []string{
	"prepend_string",
	"append_string",
	"trim",
	"uppercase",
	"lowercase",
	"replace",
	"regex_replace",
	"lookup",
}

// =============================================================================
// VALIDATION AND EXIT CODE SETTINGS
// =============================================================================

// ValidationSettings tunes the row validator.
type ValidationSettings struct {
	// StrictAmountRange turns "minAmount exceeds maxAmount" from a warning
	// into an error.
	StrictAmountRange bool `yaml:"strict_amount_range"`
}

// ExitCodes maps run outcomes to process exit codes.
// Nil fields take the defaults.
type ExitCodes struct {
	Fatal             *int `yaml:"fatal"`
	ValidationFailure *int `yaml:"validation_failure"`
	NoMissions        *int `yaml:"no_missions"`
}

// FatalCode returns the exit code for fatal errors.
func (e ExitCodes) FatalCode() int { return intOr(e.Fatal, DefaultExitFatal) }

// ValidationFailureCode returns the exit code for runs with validation errors.
func (e ExitCodes) ValidationFailureCode() int {
	return intOr(e.ValidationFailure, DefaultExitValidationFailure)
}

// NoMissionsCode returns the exit code for clean runs without missions.
func (e ExitCodes) NoMissionsCode() int { return intOr(e.NoMissions, DefaultExitNoMissions) }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the configuration from a YAML file.
// The file must exist.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	return &config, nil
}

// LoadOrDefault loads configPath, or returns the defaults when the file does
// not exist.
func LoadOrDefault(configPath string) (*MainConfig, error) {
	config, err := LoadMainConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.SheetURL == "" {
		config.SheetURL = DefaultSheetURL
	}
	if config.ExportBaseURL == "" {
		config.ExportBaseURL = sheet.DefaultBaseURL
	}
	if config.SourceFormat == "" {
		config.SourceFormat = sheet.FormatCSV
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 60 * time.Second
	}
	if config.ItemListPath == "" {
		config.ItemListPath = DefaultItemListPath
	}
	if config.OutputPath == "" {
		config.OutputPath = DefaultOutputPath
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}
	if len(config.Categories) == 0 {
		config.Categories = mission.DefaultCategoryTable()
	}

	// CSV settings defaults.
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.HeaderRows == 0 {
		config.CSVSettings.HeaderRows = 1
	}
	if config.CSVSettings.Encoding == "" {
		config.CSVSettings.Encoding = "UTF-8"
	}
}

// Validate checks the configuration after defaults and overrides are applied.
func (c *MainConfig) Validate() error {
	if c.InputPath == "" {
		if _, err := sheet.Parse(c.SheetURL); err != nil {
			return err
		}
	}

	switch c.SourceFormat {
	case sheet.FormatCSV, sheet.FormatXLSX:
	default:
		return fmt.Errorf("source_format must be %q or %q, got %q", sheet.FormatCSV, sheet.FormatXLSX, c.SourceFormat)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be \"console\" or \"json\", got %q", c.LogFormat)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative")
	}

	if c.ArchiveRetention < 0 {
		return fmt.Errorf("archive_retention must not be negative")
	}

	if c.CSVSettings.HeaderRows < 1 {
		return fmt.Errorf("csv_settings.header_rows must be at least 1")
	}

	if err := c.Categories.Validate(); err != nil {
		return fmt.Errorf("invalid categories: %w", err)
	}

	for i, rule := range c.TransformationRules {
		if mission.ColumnIndex(rule.Field) < 0 {
			return fmt.Errorf("transformation_rules[%d]: unknown field %q", i, rule.Field)
		}
		for j, action := range rule.Actions {
			if !isTransformationType(action.Type) {
				return fmt.Errorf("transformation_rules[%d].actions[%d]: unknown type %q", i, j, action.Type)
			}
		}
	}

	for name, code := range map[string]int{
		"fatal":              c.ExitCodes.FatalCode(),
		"validation_failure": c.ExitCodes.ValidationFailureCode(),
		"no_missions":        c.ExitCodes.NoMissionsCode(),
	} {
		if code < 0 || code > 125 {
			return fmt.Errorf("exit_codes.%s must be between 0 and 125, got %d", name, code)
		}
	}

	return nil
}

func isTransformationType(t string) bool {
	for _, known := range TransformationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT AND FLAG OVERRIDES
// =============================================================================

// overrideKeys are the settings that may be overridden by flags or the
// environment.
var overrideKeys = []string{
	"sheet_url",
	"export_base_url",
	"source_format",
	"input_path",
	"xlsx_sheet_name",
	"http_timeout",
	"item_list_path",
	"output_path",
	"archive_dir",
	"error_log_path",
	"report_dir",
	"log_level",
	"log_format",
}

// NewViper returns a viper instance reading MISSIONS_* environment variables.
// Callers bind command-line flags to the same keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, key := range overrideKeys {
		// BindEnv makes IsSet see the variable even before any Get.
		_ = v.BindEnv(key)
	}
	return v
}

// ApplyOverrides copies every key set in v (by flag or environment) into
// config.
func ApplyOverrides(config *MainConfig, v *viper.Viper) {
	if v == nil {
		return
	}

	set := func(key string, dst *string) {
		if v.IsSet(key) {
			if value := v.GetString(key); value != "" {
				*dst = value
			}
		}
	}

	set("sheet_url", &config.SheetURL)
	set("export_base_url", &config.ExportBaseURL)
	set("source_format", &config.SourceFormat)
	set("input_path", &config.InputPath)
	set("xlsx_sheet_name", &config.XLSXSheetName)
	set("item_list_path", &config.ItemListPath)
	set("output_path", &config.OutputPath)
	set("archive_dir", &config.ArchiveDir)
	set("error_log_path", &config.ErrorLogPath)
	set("report_dir", &config.ReportDir)
	set("log_level", &config.LogLevel)
	set("log_format", &config.LogFormat)

	if v.IsSet("http_timeout") {
		if d := v.GetDuration("http_timeout"); d > 0 {
			config.HTTPTimeout = d
		}
	}
}
