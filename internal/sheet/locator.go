// =============================================================================
// Mission Sheet Converter - Sheet Locator
// =============================================================================
//
// Turns a user-facing Google Sheets sharing URL into a direct export URL.
//
// URL ANATOMY:
//   https://docs.google.com/spreadsheets/d/<SHEET_ID>/edit?usp=sharing#gid=<GID>
//                                          ^^^^^^^^^^                    ^^^
//   SHEET_ID: letters, digits, '_' and '-' following "/d/". Required.
//   GID:      digits following "gid=" anywhere in the URL. Optional, "0"
//             (the first tab) when absent.
//
// EXPORT URL:
//   https://docs.google.com/spreadsheets/d/<SHEET_ID>/export?format=csv&gid=<GID>
//
// =============================================================================

package sheet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultBaseURL is the host serving spreadsheet exports.
const DefaultBaseURL = "https://docs.google.com"

// DefaultGID selects the first tab of a spreadsheet.
const DefaultGID = "0"

// Export formats understood by the export endpoint.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrMalformedURL is returned when no spreadsheet id can be extracted.
var ErrMalformedURL = errors.New("invalid Google Sheets URL format, must contain '/d/SHEET_ID/'")

var (
	sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	gidPattern     = regexp.MustCompile(`gid=([0-9]+)`)
)

// Locator identifies one tab of one spreadsheet.
type Locator struct {
	// SheetID is the spreadsheet identifier.
	SheetID string

	// GID is the tab identifier.
	GID string

	// GIDDefaulted is true when the URL carried no gid and DefaultGID was used.
	GIDDefaulted bool
}

// Parse extracts a Locator from a sharing URL.
func Parse(rawURL string) (Locator, error) {
	m := sheetIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return Locator{}, fmt.Errorf("%w (URL provided: %s)", ErrMalformedURL, rawURL)
	}

	loc := Locator{SheetID: m[1], GID: DefaultGID, GIDDefaulted: true}
	if g := gidPattern.FindStringSubmatch(rawURL); len(g) >= 2 {
		loc.GID = g[1]
		loc.GIDDefaulted = false
	}
	return loc, nil
}

// ExportURL builds the CSV export URL on DefaultBaseURL.
func (l Locator) ExportURL() string {
	return l.ExportURLWith(DefaultBaseURL, FormatCSV)
}

// ExportURLWith builds the export URL on baseURL for the given format.
// An empty baseURL or format falls back to the defaults.
func (l Locator) ExportURLWith(baseURL, format string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if format == "" {
		format = FormatCSV
	}
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=%s&gid=%s",
		strings.TrimRight(baseURL, "/"), l.SheetID, format, l.GID)
}
