// Package sheet reads SKU rows from uploaded CSV or XLSX files and writes
// computed plans and the input template back out as spreadsheets.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/boxplan/internal/report"
	"github.com/eugenenazirov/boxplan/internal/sku"
)

// Supported file extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported sheet format, expected .csv or .xlsx")

// InputHeader is the first row of the downloadable template.
var InputHeader = []string{"SKU ID", "Length (cm)", "Width (cm)", "Height (cm)", "Weight (kg)"}

// Parse reads SKU rows from r, choosing the decoder from the file name.
func Parse(filename string, r io.Reader) ([]sku.Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtCSV:
		return ParseCSV(r)
	case ExtXLSX:
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ParseCSV reads rows from a comma separated file.
func ParseCSV(r io.Reader) ([]sku.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return normalizeRows(records), nil
}

// ParseXLSX reads rows from the first worksheet of an XLSX workbook.
func ParseXLSX(r io.Reader) ([]sku.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheets[0], err)
	}
	return normalizeRows(records), nil
}

// normalizeRows drops a leading header row and fully blank rows. Every other
// row is kept so the validator sees malformed data.
func normalizeRows(records [][]string) []sku.Row {
	if len(records) > 0 && isHeader(records[0]) {
		records = records[1:]
	}

	rows := make([]sku.Row, 0, len(records))
	for _, rec := range records {
		row := trimTrailingBlanks(sku.Row(rec))
		if sku.IsBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// idLabels are the normalized first-column titles recognised as a header.
var idLabels = map[string]bool{
	headerKey(InputHeader[0]):   true,
	headerKey(report.Header[0]): true,
	"sku":                       true,
	"id":                        true,
}

// isHeader reports whether rec is a title row: its first cell is a known SKU
// ID label and none of the measurement cells are numeric.
func isHeader(rec []string) bool {
	if len(rec) < 2 || !idLabels[headerKey(rec[0])] {
		return false
	}
	for _, cell := range rec[1:min(len(rec), sku.FieldCount)] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return false
		}
	}
	return true
}

// headerKey lowercases s and drops everything but letters and digits.
func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trimTrailingBlanks removes empty cells past the fifth column, which
// spreadsheets often emit for formatted but empty columns.
func trimTrailingBlanks(row sku.Row) sku.Row {
	end := len(row)
	for end > sku.FieldCount && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
