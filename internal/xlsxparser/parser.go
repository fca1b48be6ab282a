// =============================================================================
// Mission Sheet Converter - XLSX Workbook Reader
// =============================================================================
//
// This module reads mission rows from an XLSX workbook: either the sheet
// export downloaded with format=xlsx, or a local workbook given as input.
//
// WORKBOOK LAYOUT:
//   The worksheet has the same layout as the CSV export:
//
//   | A         | B     | C        | D               | E     | F         | G         |
//   |-----------|-------|----------|-----------------|-------|-----------|-----------|
//   | missionId | names | category | requirementType | items | minAmount | maxAmount |
//   | m1        | Give  | Small    | collect         | STONE | 5         | 10        |
//
//   The first row is the header. Rows are numbered as in the spreadsheet UI,
//   so row 2 is the first data row.
//
// CELL VALUES:
//   Raw cell values are used, so a numeric cell formatted as "5.00" in the
//   UI still reads as "5".
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

// =============================================================================
// SHEET STRUCTURE
// =============================================================================

// Sheet holds the rows of one worksheet.
type Sheet struct {
	// Name is the worksheet name.
	Name string

	// Headers contains the last header row.
	Headers []string

	// Rows contains the non-blank data rows in sheet order.
	Rows []mission.RawRow

	// Skipped is the number of blank rows between data rows.
	Skipped int
}

// =============================================================================
// READER FUNCTIONS
// =============================================================================

// ReadFile opens a workbook on disk and reads one worksheet.
func ReadFile(path, sheetName string, headerRows int) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheetName, headerRows)
}

// Read reads one worksheet from a workbook stream.
//
// PARAMETERS:
//   - r: The workbook bytes.
//   - sheetName: The worksheet to read. Empty selects the first worksheet.
//   - headerRows: Leading rows to skip. Values below 1 mean 1.
//
// RETURNS:
//   - The worksheet rows.
//   - An error if the workbook cannot be opened or the worksheet is missing.
func Read(r io.Reader, sheetName string, headerRows int) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheetName, headerRows)
}

func readSheet(f *excelize.File, sheetName string, headerRows int) (*Sheet, error) {
	if headerRows < 1 {
		headerRows = 1
	}

	name, err := resolveSheetName(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of worksheet %q: %w", name, err)
	}

	sheet := &Sheet{Name: name}
	if len(rows) == 0 {
		return sheet, nil
	}

	headerEnd := headerRows
	if headerEnd > len(rows) {
		headerEnd = len(rows)
	}
	sheet.Headers = rows[headerEnd-1]

	width := len(sheet.Headers)
	for i := headerEnd; i < len(rows); i++ {
		row := mission.RawRow{
			RowNumber: i + 1,
			Fields:    padRow(rows[i], width),
		}
		if row.IsBlank() {
			sheet.Skipped++
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, nil
}

// resolveSheetName returns sheetName when the workbook has it, or the first
// worksheet when sheetName is empty.
func resolveSheetName(f *excelize.File, sheetName string) (string, error) {
	if sheetName == "" {
		name := f.GetSheetName(0)
		if name == "" {
			return "", fmt.Errorf("workbook has no worksheets")
		}
		return name, nil
	}

	index, err := f.GetSheetIndex(sheetName)
	if err != nil || index < 0 {
		return "", fmt.Errorf("worksheet %q not found (available: %s)",
			sheetName, strings.Join(f.GetSheetList(), ", "))
	}
	return sheetName, nil
}

// padRow extends row to width with empty cells.
// GetRows drops trailing empty cells, which would otherwise turn a row with
// a blank maxAmount into a short row.
func padRow(row []string, width int) []string {
	if len(row) == 0 || len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
