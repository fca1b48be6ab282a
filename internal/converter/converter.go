// =============================================================================
// Mission Sheet Converter - Converter Module
// =============================================================================
//
// This module contains the conversion pipeline. It runs one conversion from
// the item list to the missions file, top to bottom.
//
// CONVERSION PIPELINE:
//   1. Load the valid item set
//   2. Resolve the source: download the sheet export, or open a local file
//   3. Read rows (CSV or XLSX)
//   4. Apply transformation rules to each row
//   5. Validate each row, accumulating missions, errors and warnings
//   6. Decide the outcome
//   7. On success: archive the previous output and write the new one
//   8. Write the error log and run summary, if configured
//
// FAILURE MODES:
//   - Fatal: steps 1, 2, 3 (unreadable source), 4 and 7. The run stops at
//     once and nothing is written.
//   - Validation: step 5 never stops. Every row is checked, then the run
//     fails as a whole if any row had an error.
//
// CONCURRENCY:
//   None. A run is a single goroutine; the only blocking call is the
//   download, which honours the context.
//
// =============================================================================

package converter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/mission-sheet-converter/internal/config"
	"github.com/ginjaninja78/mission-sheet-converter/internal/csvparser"
	"github.com/ginjaninja78/mission-sheet-converter/internal/fetcher"
	"github.com/ginjaninja78/mission-sheet-converter/internal/itemset"
	"github.com/ginjaninja78/mission-sheet-converter/internal/jsonwriter"
	"github.com/ginjaninja78/mission-sheet-converter/internal/logging"
	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
	"github.com/ginjaninja78/mission-sheet-converter/internal/sheet"
	"github.com/ginjaninja78/mission-sheet-converter/internal/validation"
	"github.com/ginjaninja78/mission-sheet-converter/internal/xlsxparser"
	"github.com/ginjaninja78/mission-sheet-converter/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Outcome classifies a finished run.
type Outcome string

// Run outcomes.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeNoMissions       Outcome = "no_missions"
	OutcomeFatal            Outcome = "fatal"
)

// Result represents the outcome of one run.
type Result struct {
	// RunID uniquely identifies the run in logs and reports.
	RunID string

	// Source is the export URL or local file rows were read from.
	Source string

	// Outcome classifies the run.
	Outcome Outcome

	// Missions contains the records of every valid row.
	// On a failed run it holds the rows that passed, for reporting only.
	Missions []mission.Record

	// Errors contains every accumulated validation error.
	Errors []*validation.ValidationError

	// Warnings contains every accumulated warning.
	Warnings []*validation.ValidationError

	// OutputFile is the path of the written missions file.
	// Empty unless the run succeeded and was not a dry run.
	OutputFile string

	// ArchivePath is where the previous output was copied, if anywhere.
	ArchivePath string

	// ErrorLogPath is the path of the written error log, if any.
	ErrorLogPath string

	// SummaryPath is the path of the written run summary, if any.
	SummaryPath string

	// DryRun is true when writing was disabled.
	DryRun bool

	// Err contains the fatal error that halted the run.
	// This is nil unless Outcome is OutcomeFatal.
	Err error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// ItemsLoaded is the number of valid item IDs loaded.
	ItemsLoaded int

	// BytesRead is the size of the downloaded or local payload.
	BytesRead int64

	// RowsRead is the number of non-blank data rows read.
	RowsRead int

	// RowsSkipped is the number of blank rows skipped.
	RowsSkipped int

	// MissionsCreated is the number of rows that produced a mission.
	MissionsCreated int

	// ValidationErrors is the number of validation errors encountered.
	ValidationErrors int

	// Warnings is the number of warnings encountered.
	Warnings int

	// BytesWritten is the size of the written missions file.
	BytesWritten int

	// ProcessingTime is the wall-clock duration of the run.
	ProcessingTime time.Duration
}

// ExitCode maps the outcome to a process exit code.
func (r Result) ExitCode(codes config.ExitCodes) int {
	switch r.Outcome {
	case OutcomeSuccess:
		return 0
	case OutcomeValidationFailed:
		return codes.ValidationFailureCode()
	case OutcomeNoMissions:
		return codes.NoMissionsCode()
	default:
		return codes.FatalCode()
	}
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the conversion pipeline.
type Converter struct {
	// mainConfig is the application configuration.
	mainConfig *config.MainConfig

	// transformer rewrites rows before validation.
	transformer *Transformer

	// fetcher downloads the sheet export.
	fetcher *fetcher.Fetcher

	// files handles archiving and reports.
	files *utils.FileManager

	// dryRun disables every write except logging.
	dryRun bool

	// httpClient overrides the fetcher's default client when set.
	httpClient fetcher.HTTPClient

	// userAgent overrides the fetcher's User-Agent when set.
	userAgent string

	logger Logger
}

// Logger is an interface for logging.
type Logger = logging.Logger

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithDryRun validates without writing the missions file or the archive.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) {
		c.dryRun = dryRun
	}
}

// WithHTTPClient sets the client used for the download.
func WithHTTPClient(client fetcher.HTTPClient) Option {
	return func(c *Converter) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent sent with the download.
func WithUserAgent(userAgent string) Option {
	return func(c *Converter) {
		c.userAgent = userAgent
	}
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter.
//
// PARAMETERS:
//   - mainConfig: The application configuration, with defaults applied.
//   - opts: Optional settings.
//
// RETURNS:
//   - A new Converter instance.
//   - An error if the transformation rules or HTTP client cannot be built.
func New(mainConfig *config.MainConfig, opts ...Option) (*Converter, error) {
	c := &Converter{
		mainConfig: mainConfig,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	transformer, err := NewTransformer(mainConfig.TransformationRules)
	if err != nil {
		return nil, fmt.Errorf("failed to build transformation rules: %w", err)
	}
	c.transformer = transformer

	fetcherOpts := []fetcher.Option{fetcher.WithTimeout(mainConfig.HTTPTimeout)}
	if c.httpClient != nil {
		fetcherOpts = append(fetcherOpts, fetcher.WithHTTPClient(c.httpClient))
	}
	if c.userAgent != "" {
		fetcherOpts = append(fetcherOpts, fetcher.WithUserAgent(c.userAgent))
	}
	f, err := fetcher.New(fetcherOpts...)
	if err != nil {
		return nil, err
	}
	c.fetcher = f

	c.files = utils.NewFileManager(mainConfig.OutputPath, mainConfig.ArchiveDir, mainConfig.ReportDir)
	c.files.UseTimestampSubdirs = mainConfig.ArchiveByDate

	return c, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline.
//
// RETURNS:
//   - A Result describing the outcome. Run never panics on bad input; fatal
//     conditions are reported through Result.Err.
func (c *Converter) Run(ctx context.Context) Result {
	startTime := time.Now()
	result := Result{
		RunID:  uuid.New().String(),
		DryRun: c.dryRun,
	}

	c.logger.Info("Starting run %s", result.RunID)

	if err := c.run(ctx, &result); err != nil {
		result.Outcome = OutcomeFatal
		result.Err = err
		c.logger.Error("Run halted: %v", err)
	}

	result.Stats.ProcessingTime = time.Since(startTime)
	c.writeSummary(&result, startTime)

	return result
}

// run performs steps 1 to 7. A returned error is fatal.
func (c *Converter) run(ctx context.Context, result *Result) error {
	// =========================================================================
	// STEP 1: LOAD VALID ITEM SET
	// =========================================================================
	// Happens before any network activity so a missing list fails fast.

	items, err := itemset.Load(c.mainConfig.ItemListPath)
	if err != nil {
		return fmt.Errorf("failed to load item list: %w", err)
	}
	result.Stats.ItemsLoaded = items.Len()
	c.logger.Info("Loaded %d valid item IDs from %s", items.Len(), c.mainConfig.ItemListPath)

	// =========================================================================
	// STEPS 2 AND 3: RESOLVE SOURCE AND READ ROWS
	// =========================================================================

	rows, err := c.openRows(ctx, result)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEPS 4 AND 5: TRANSFORM AND VALIDATE
	// =========================================================================
	// Every row is checked. Rule violations accumulate; nothing here stops
	// the scan except a broken transformation rule.

	validator := validation.NewValidator(c.mainConfig.Categories, items, validation.Options{
		StrictAmountRange: c.mainConfig.Validation.StrictAmountRange,
		ItemListName:      filepath.Base(c.mainConfig.ItemListPath),
	})
	outcome := validation.NewResult()

	for rows.Next() {
		row, err := c.transformer.TransformRow(rows.Row())
		if err != nil {
			return fmt.Errorf("failed to apply transformations: %w", err)
		}
		validator.Collect(outcome, row)
		c.logger.Debug("Checked row %d", row.RowNumber)
	}
	if err := rows.Err(); err != nil {
		outcome.Add(validation.NewParseError(err))
	}
	result.Stats.RowsSkipped = rows.Skipped()

	result.Missions = outcome.Missions
	result.Errors = outcome.Errors
	result.Warnings = outcome.Warnings
	result.Stats.RowsRead = outcome.RowsValidated
	result.Stats.RowsSkipped += outcome.RowsSkipped
	result.Stats.MissionsCreated = len(outcome.Missions)
	result.Stats.ValidationErrors = outcome.ErrorCount()
	result.Stats.Warnings = outcome.WarningCount()

	for _, w := range outcome.Warnings {
		c.logger.Warn("%s", w.Error())
	}
	c.logger.Debug("Validation complete: %d missions, %d errors, %d warnings",
		len(outcome.Missions), outcome.ErrorCount(), outcome.WarningCount())

	// =========================================================================
	// STEP 6: DECIDE
	// =========================================================================

	switch {
	case !outcome.IsValid():
		result.Outcome = OutcomeValidationFailed
		c.writeErrorLog(result)
		return nil
	case len(outcome.Missions) == 0:
		result.Outcome = OutcomeNoMissions
		return nil
	}

	// =========================================================================
	// STEP 7: WRITE OUTPUT
	// =========================================================================

	if c.dryRun {
		c.logger.Info("Dry run: %d missions validated, nothing written", len(outcome.Missions))
		result.Outcome = OutcomeSuccess
		return nil
	}

	if err := c.files.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	archivePath, err := c.files.ArchiveOutputFile()
	if err != nil {
		// Log the error but don't fail the processing.
		c.logger.Warn("Failed to archive previous output: %v", err)
	} else if archivePath != "" {
		result.ArchivePath = archivePath
		c.logger.Info("Archived previous output to %s", archivePath)
	}

	written, err := jsonwriter.WriteFile(c.mainConfig.OutputPath, outcome.Missions)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	result.OutputFile = c.mainConfig.OutputPath
	result.Stats.BytesWritten = written
	result.Outcome = OutcomeSuccess
	c.logger.Info("Wrote %d missions (%d bytes) to %s", len(outcome.Missions), written, c.mainConfig.OutputPath)

	if removed, err := c.files.CleanOldArchives(c.mainConfig.ArchiveRetention); err != nil {
		c.logger.Warn("Failed to clean archives: %v", err)
	} else if removed > 0 {
		c.logger.Info("Removed %d expired archives", removed)
	}

	return nil
}

// =============================================================================
// SOURCE RESOLUTION
// =============================================================================

// rowSource iterates over data rows.
// It is satisfied by *csvparser.StreamingParser.
type rowSource interface {
	Next() bool
	Row() mission.RawRow
	Err() error

	// Skipped returns the number of blank rows the reader dropped.
	Skipped() int
}

// sliceSource adapts already-read rows to rowSource.
type sliceSource struct {
	rows    []mission.RawRow
	pos     int
	skipped int
}

func (s *sliceSource) Next() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Row() mission.RawRow { return s.rows[s.pos-1] }

func (s *sliceSource) Err() error { return nil }

func (s *sliceSource) Skipped() int { return s.skipped }

// openRows downloads or opens the configured source and returns its rows.
func (c *Converter) openRows(ctx context.Context, result *Result) (rowSource, error) {
	if c.mainConfig.InputPath != "" {
		return c.openLocal(result)
	}

	loc, err := sheet.Parse(c.mainConfig.SheetURL)
	if err != nil {
		return nil, err
	}
	if loc.GIDDefaulted {
		c.logger.Info("No gid found in URL, defaulting to %s", sheet.DefaultGID)
	}

	format := c.mainConfig.SourceFormat
	exportURL := loc.ExportURLWith(c.mainConfig.ExportBaseURL, format)
	result.Source = exportURL
	c.logger.Info("Downloading sheet %s (gid %s) from %s", loc.SheetID, loc.GID, exportURL)

	resp, err := c.fetcher.Fetch(ctx, exportURL)
	if err != nil {
		return nil, err
	}
	result.Stats.BytesRead = int64(len(resp.Body))
	c.logger.Debug("Downloaded %d bytes (%s) from %s", len(resp.Body), resp.ContentType, resp.URL)

	if format == sheet.FormatXLSX {
		// The xlsx export is the whole workbook; gid does not select a tab.
		if loc.GID != sheet.DefaultGID && c.mainConfig.XLSXSheetName == "" {
			c.logger.Warn("URL selects gid %s but the xlsx export contains every tab; "+
				"reading the first worksheet. Set xlsx_sheet_name to choose one", loc.GID)
		}
		return c.readWorkbook(xlsxparser.Read(bytes.NewReader(resp.Body),
			c.mainConfig.XLSXSheetName, c.mainConfig.CSVSettings.HeaderRows))
	}

	settings := c.mainConfig.CSVSettings
	if resp.Charset != "" && strings.EqualFold(settings.Encoding, "UTF-8") {
		settings.Encoding = resp.Charset
	}
	parser, err := csvparser.NewStreamingParser(bytes.NewReader(resp.Body), settings)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet data: %w", err)
	}
	return parser, nil
}

// openLocal reads rows from a local .csv or .xlsx file.
func (c *Converter) openLocal(result *Result) (rowSource, error) {
	path := c.mainConfig.InputPath
	result.Source = path
	c.logger.Info("Reading rows from local file %s", path)

	if size, err := utils.GetFileSize(path); err == nil {
		result.Stats.BytesRead = size
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return c.readWorkbook(xlsxparser.ReadFile(path,
			c.mainConfig.XLSXSheetName, c.mainConfig.CSVSettings.HeaderRows))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	parser, err := csvparser.NewStreamingParser(bytes.NewReader(data), c.mainConfig.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return parser, nil
}

func (c *Converter) readWorkbook(ws *xlsxparser.Sheet, err error) (rowSource, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	c.logger.Debug("Read %d rows from worksheet %q", len(ws.Rows), ws.Name)
	return &sliceSource{rows: ws.Rows, skipped: ws.Skipped}, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// writeErrorLog writes the validation report when error_log_path is set.
func (c *Converter) writeErrorLog(result *Result) {
	path := c.mainConfig.ErrorLogPath
	if path == "" {
		return
	}
	if err := validation.WriteErrorLog(result.Errors, path, result.Source); err != nil {
		c.logger.Warn("Failed to write error log: %v", err)
		return
	}
	result.ErrorLogPath = path
	c.logger.Info("Wrote error log to %s", path)
}

// writeSummary writes the run summary when report_dir is set.
func (c *Converter) writeSummary(result *Result, startTime time.Time) {
	summary := utils.RunSummary{
		RunID:       result.RunID,
		StartTime:   startTime,
		EndTime:     startTime.Add(result.Stats.ProcessingTime),
		Source:      result.Source,
		Outcome:     string(result.Outcome),
		RowsRead:    result.Stats.RowsRead,
		RowsSkipped: result.Stats.RowsSkipped,
		Missions:    result.Stats.MissionsCreated,
		Errors:      result.Stats.ValidationErrors,
		Warnings:    result.Stats.Warnings,
		OutputFile:  result.OutputFile,
		ArchivePath: result.ArchivePath,
		DryRun:      result.DryRun,
	}
	for _, e := range result.Errors {
		summary.Messages = append(summary.Messages, e.Error())
	}
	for _, w := range result.Warnings {
		summary.Messages = append(summary.Messages, "warning: "+w.Error())
	}
	if result.Err != nil {
		summary.FatalError = result.Err.Error()
	}

	path, err := c.files.WriteSummaryLog(summary)
	if err != nil {
		c.logger.Warn("Failed to write run summary: %v", err)
		return
	}
	if path != "" {
		result.SummaryPath = path
		c.logger.Debug("Wrote run summary to %s", path)
	}
}
