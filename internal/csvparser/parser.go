// =============================================================================
// Mission Sheet Converter - CSV Parser Module
// =============================================================================
//
// This module turns the CSV payload of a sheet export into positional rows.
// It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Any number of leading header rows (one by default)
//   - Non-UTF-8 payloads (any WHATWG encoding label)
//   - Quoted fields with embedded commas, quotes and newlines
//
// Rows keep their source line number so validation errors can point at the
// sheet row a human has to fix. Fields are returned exactly as read; trimming
// is left to the validator.
//
// A tokenization error stops the read, including one in a header row. Rows
// read before the error are kept and the error is returned from Err.
//
// Blank rows are dropped and counted. encoding/csv skips empty lines on its
// own, so those are recovered from gaps in the source line numbers.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ginjaninja78/mission-sheet-converter/internal/config"
	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a fully parsed payload.
type CSVData struct {
	// Headers contains the last header row, as read.
	Headers []string

	// Rows contains the non-blank data rows in source order.
	Rows []mission.RawRow

	// RowCount is the number of data rows in Rows.
	RowCount int

	// Skipped is the number of blank lines dropped after the header.
	Skipped int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a whole CSV payload.
//
// PARAMETERS:
//   - r: The payload.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - The parsed data. On a tokenization error it holds the rows read so far.
//   - An error if the encoding is unknown or the payload cannot be tokenized.
func Parse(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	parser, err := NewStreamingParser(r, settings)
	if err != nil {
		return nil, err
	}

	data := &CSVData{Headers: parser.Headers()}
	for parser.Next() {
		data.Rows = append(data.Rows, parser.Row())
	}
	data.RowCount = len(data.Rows)
	data.Skipped = parser.Skipped()

	return data, parser.Err()
}

// NewDecodingReader wraps r so it yields UTF-8.
// An empty or UTF-8 label only strips a leading byte order mark.
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		br := bufio.NewReader(r)
		if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
		return br, nil
	}

	decoded, err := charset.NewReaderLabel(encoding, r)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return decoded, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	// Handle special cases for common delimiters.
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Column count is checked by the validator, per row.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = !settings.StrictQuotes
	reader.TrimLeadingSpace = settings.TrimLeadingSpace
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads rows one at a time.
//
// USAGE:
//   parser, err := NewStreamingParser(r, settings)
//   if err != nil {
//       return err
//   }
//
//   for parser.Next() {
//       row := parser.Row()
//       // Process the row...
//   }
//
//   if err := parser.Err(); err != nil {
//       return err
//   }
type StreamingParser struct {
	reader     *csv.Reader
	lines      *lineCounter
	headers    []string
	currentRow mission.RawRow
	rowNumber  int

	// lastLine is the source line the previous record ended on.
	lastLine int
	skipped  int

	done bool
	err  error
}

// NewStreamingParser creates a parser over r and consumes the header rows.
// A payload with no rows at all is not an error: Next simply returns false.
// The only constructor error is an unsupported encoding; a malformed header
// is reported through Err.
func NewStreamingParser(r io.Reader, settings config.CSVSettings) (*StreamingParser, error) {
	decoded, err := NewDecodingReader(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	lines := &lineCounter{r: decoded}
	reader := csv.NewReader(lines)
	configureReader(reader, settings)

	parser := &StreamingParser{reader: reader, lines: lines}

	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	parser.readHeaders(headerRows)

	return parser, nil
}

// readHeaders skips the header rows, keeping the last one.
func (p *StreamingParser) readHeaders(count int) {
	for i := 0; i < count; i++ {
		row, err := p.reader.Read()
		if err == io.EOF {
			p.done = true
			return
		}
		if err != nil {
			p.err = fmt.Errorf("error reading header row %d: %w", i+1, err)
			return
		}
		p.headers = row
		p.rowNumber, _ = p.reader.FieldPos(0)
		p.lastLine = p.recordEnd(row)
	}
}

// Next advances to the next non-blank row. Returns false when there are no
// more rows or a tokenization error occurred.
func (p *StreamingParser) Next() bool {
	for !p.done && p.err == nil {
		fields, err := p.reader.Read()
		if err == io.EOF {
			p.done = true
			if total := p.lines.total(); total > p.lastLine {
				p.skipped += total - p.lastLine
			}
			return false
		}
		if err != nil {
			p.err = parseError(err, p.rowNumber+1)
			return false
		}

		p.rowNumber, _ = p.reader.FieldPos(0)
		if gap := p.rowNumber - p.lastLine - 1; gap > 0 {
			p.skipped += gap
		}
		p.lastLine = p.recordEnd(fields)

		row := mission.RawRow{RowNumber: p.rowNumber, Fields: fields}
		if row.IsBlank() {
			p.skipped++
			continue
		}

		p.currentRow = row
		return true
	}
	return false
}

// recordEnd returns the source line the record just read ends on.
// Quoted fields may span lines; their newlines are kept in the field.
func (p *StreamingParser) recordEnd(fields []string) int {
	if len(fields) == 0 {
		return p.lastLine
	}
	last := len(fields) - 1
	line, _ := p.reader.FieldPos(last)
	return line + strings.Count(fields[last], "\n")
}

// parseError wraps a csv error with the line it occurred on.
func parseError(err error, fallbackLine int) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return fmt.Errorf("error parsing CSV at line %d: %w", perr.Line, err)
	}
	return fmt.Errorf("error parsing CSV near line %d: %w", fallbackLine, err)
}

// Row returns the current row.
func (p *StreamingParser) Row() mission.RawRow {
	return p.currentRow
}

// Headers returns the last header row.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// RowNumber returns the source line of the current row (1-indexed).
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Skipped returns the number of blank lines dropped so far.
// Lines before the last header row are not counted.
func (p *StreamingParser) Skipped() int {
	return p.skipped
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}

// lineCounter counts the lines of everything read through it.
type lineCounter struct {
	r        io.Reader
	newlines int
	last     byte
	any      bool
}

func (c *lineCounter) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.newlines += bytes.Count(b[:n], []byte{'\n'})
		c.last = b[n-1]
		c.any = true
	}
	return n, err
}

// total returns the number of lines read, counting an unterminated last line.
func (c *lineCounter) total() int {
	if c.any && c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}
