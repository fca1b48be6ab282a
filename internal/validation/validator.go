// =============================================================================
// Mission Sheet Converter - Validation Engine
// =============================================================================
//
// This module validates raw sheet rows and normalizes the valid ones into
// mission records.
//
// RULES (all evaluated, every violation on a row is collected):
//   1. Field count   : exactly 7 fields. A blank row is skipped silently.
//                      A wrong count is one structural error and stops the
//                      checks for that row.
//   2. Category      : must be a key of the category table.
//   3. Items present : the items column must list at least one item.
//   4. Item IDs      : every listed item must be in the valid item set.
//                      One error per unknown item.
//   5. Amounts       : minAmount and maxAmount must be base-10 integers.
//                      One combined error when either fails.
//                      min > max is a warning (an error in strict mode).
//   6. Titles        : split like items. An empty list is allowed.
//
// ERROR HANDLING:
//   - Errors are collected, never returned early.
//   - A row with any error-severity entry produces no record.
//   - Warnings are reported but do not reject the row.
//   - Each error carries the row number, mission id and offending value so
//     the sheet row can be located without re-running.
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleFieldCount  = "field_count"
	RuleCategory    = "category"
	RuleItemsEmpty  = "items_empty"
	RuleItemID      = "item_id"
	RuleAmount      = "amount"
	RuleAmountRange = "amount_range"
	RuleCSVParse    = "csv_parse"
)

// ValidationError represents a single violated rule.
type ValidationError struct {
	// Severity indicates the severity of the error.
	// "error" = the row is rejected and the run fails
	// "warning" = reported only
	Severity string

	// Rule is the validation rule that was violated.
	Rule string

	// RowNumber is the source row number (the header is row 1).
	// Zero when the error is not tied to a row.
	RowNumber int

	// MissionID is the raw missionId field of the row, if it had one.
	MissionID string

	// Field is the name of the column that failed validation.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.RowNumber > 0 && e.MissionID != "":
		return fmt.Sprintf("Row %d (Mission: %s): %s", e.RowNumber, e.MissionID, e.Message)
	case e.RowNumber > 0:
		return fmt.Sprintf("Row %d: %s", e.RowNumber, e.Message)
	default:
		return e.Message
	}
}

// IsWarning reports whether the entry is a warning.
func (e *ValidationError) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// NewParseError wraps a tokenization error of the row source.
func NewParseError(err error) *ValidationError {
	return &ValidationError{
		Severity: SeverityError,
		Rule:     RuleCSVParse,
		Value:    err.Error(),
		Message:  fmt.Sprintf("failed to parse sheet data: %v", err),
	}
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result accumulates the outcome of validating every row.
type Result struct {
	// Missions contains a record for every row that passed.
	Missions []mission.Record

	// Errors contains every error-severity entry.
	Errors []*ValidationError

	// Warnings contains every warning-severity entry.
	Warnings []*ValidationError

	// RowsValidated is the number of non-blank rows checked.
	RowsValidated int

	// RowsSkipped is the number of blank rows skipped.
	RowsSkipped int
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{
		Missions: []mission.Record{},
		Errors:   []*ValidationError{},
		Warnings: []*ValidationError{},
	}
}

// IsValid is true if there are no error-severity entries.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// ErrorCount is the number of error-severity entries.
func (r *Result) ErrorCount() int {
	return len(r.Errors)
}

// WarningCount is the number of warnings.
func (r *Result) WarningCount() int {
	return len(r.Warnings)
}

// Add files a single entry under Errors or Warnings.
func (r *Result) Add(e *ValidationError) {
	if e.IsWarning() {
		r.Warnings = append(r.Warnings, e)
		return
	}
	r.Errors = append(r.Errors, e)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ItemSet is the set of valid item identifiers.
type ItemSet interface {
	Contains(id string) bool
}

// Options contains options for validation.
type Options struct {
	// StrictAmountRange makes min > max an error instead of a warning.
	// Default: false
	StrictAmountRange bool

	// ItemListName names the item list in "invalid item ID" messages.
	// Default: "item list"
	ItemListName string
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{ItemListName: "item list"}
}

// Validator checks rows against a category table and an item set.
// It holds no per-run state and may be reused.
type Validator struct {
	categories mission.CategoryTable
	items      ItemSet
	options    Options
}

// NewValidator creates a new Validator instance.
func NewValidator(categories mission.CategoryTable, items ItemSet, options Options) *Validator {
	if options.ItemListName == "" {
		options.ItemListName = DefaultOptions().ItemListName
	}
	return &Validator{
		categories: categories,
		items:      items,
		options:    options,
	}
}

// =============================================================================
// MAIN VALIDATION FUNCTIONS
// =============================================================================

// ValidateRows validates every row and folds the outcomes into a Result.
func (v *Validator) ValidateRows(rows []mission.RawRow) *Result {
	result := NewResult()
	for _, row := range rows {
		v.Collect(result, row)
	}
	return result
}

// Collect validates one row and folds its outcome into result.
func (v *Validator) Collect(result *Result, row mission.RawRow) {
	if row.IsBlank() {
		result.RowsSkipped++
		return
	}

	result.RowsValidated++
	record, problems := v.ValidateRow(row)
	for _, p := range problems {
		result.Add(p)
	}
	if record != nil {
		result.Missions = append(result.Missions, *record)
	}
}

// ValidateRow validates a single row.
//
// RETURNS:
//   - The normalized record, or nil when the row has any error or is blank.
//   - Every violation found, warnings included.
func (v *Validator) ValidateRow(row mission.RawRow) (*mission.Record, []*ValidationError) {
	if row.IsBlank() {
		return nil, nil
	}

	// Rule 1: structure. Field checks are meaningless on a misaligned row.
	if len(row.Fields) != mission.ColumnCount {
		return nil, []*ValidationError{{
			Severity:  SeverityError,
			Rule:      RuleFieldCount,
			RowNumber: row.RowNumber,
			Value:     strconv.Itoa(len(row.Fields)),
			Message: fmt.Sprintf("invalid row format, expected %d columns, got %d",
				mission.ColumnCount, len(row.Fields)),
		}}
	}

	id := row.Field(mission.ColumnID)
	var problems []*ValidationError
	fail := func(severity, rule string, column int, value, message string) {
		problems = append(problems, &ValidationError{
			Severity:  severity,
			Rule:      rule,
			RowNumber: row.RowNumber,
			MissionID: id,
			Field:     mission.ColumnNamesList[column],
			Value:     value,
			Message:   message,
		})
	}

	// Rule 2: category.
	categoryName := row.Field(mission.ColumnCategory)
	category, categoryOK := v.categories.Lookup(categoryName)
	if !categoryOK {
		fail(SeverityError, RuleCategory, mission.ColumnCategory, categoryName,
			fmt.Sprintf("invalid category '%s' (expected one of: %s)",
				categoryName, strings.Join(v.categories.Names(), ", ")))
	}

	// Rules 3 and 4: items.
	items := SplitAndTrim(row.Field(mission.ColumnItems))
	if len(items) == 0 {
		fail(SeverityError, RuleItemsEmpty, mission.ColumnItems, row.Field(mission.ColumnItems),
			"'items' column is empty")
	}
	for _, item := range items {
		if !v.items.Contains(item) {
			fail(SeverityError, RuleItemID, mission.ColumnItems, item,
				fmt.Sprintf("invalid item ID '%s' (not found in %s)", item, v.options.ItemListName))
		}
	}

	// Rule 5: amounts.
	rawMin := row.Field(mission.ColumnMinAmount)
	rawMax := row.Field(mission.ColumnMaxAmount)
	minAmount, minErr := ParseAmount(rawMin)
	maxAmount, maxErr := ParseAmount(rawMax)
	if minErr != nil || maxErr != nil {
		column := mission.ColumnMinAmount
		if minErr == nil {
			column = mission.ColumnMaxAmount
		}
		fail(SeverityError, RuleAmount, column, rawMin+","+rawMax,
			fmt.Sprintf("invalid min/max amount ('%s', '%s'), must be integers", rawMin, rawMax))
	} else if minAmount > maxAmount {
		severity := SeverityWarning
		if v.options.StrictAmountRange {
			severity = SeverityError
		}
		fail(severity, RuleAmountRange, mission.ColumnMinAmount, rawMin,
			fmt.Sprintf("minAmount %d exceeds maxAmount %d", minAmount, maxAmount))
	}

	for _, p := range problems {
		if !p.IsWarning() {
			return nil, problems
		}
	}

	// Rule 6: titles have no requirement.
	record := &mission.Record{
		ID:     id,
		Weight: category.Weight,
		Titles: SplitAndTrim(row.Field(mission.ColumnNames)),
		Requirement: mission.Requirement{
			RequirementType: row.Field(mission.ColumnRequirementType),
			Item:            items,
			MinAmount:       minAmount,
			MaxAmount:       maxAmount,
		},
		Reward: category.Reward,
	}
	return record, problems
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

// SplitAndTrim splits s on commas, trims each piece and drops empty pieces.
// It never returns nil, so an empty list serializes as [].
func SplitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseAmount parses a base-10 integer, tolerating surrounding whitespace
// and an optional sign.
func ParseAmount(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
//
// PARAMETERS:
//   - errors: The validation errors to format.
//
// RETURNS:
//   - A formatted string with one numbered line per error.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
//
// PARAMETERS:
//   - errors: The validation errors to write.
//   - filePath: The path to the output file.
//   - source: What was validated (sheet URL or input path), for the header.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath, source string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Mission Sheet Validation Report\n")
	fmt.Fprintf(writer, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(writer, "Source:    %s\n\n", source)
	writer.WriteString(FormatErrors(errors))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return file.Close()
}
