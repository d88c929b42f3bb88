package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"storefront-service/internal/models"
)

// ParseResult holds the rows of a successfully opened file plus any
// row-scoped problems encountered while reading it. A file that cannot be
// opened at all (unreadable header, corrupt workbook) is a hard parse
// failure and is reported through the error return instead.
type ParseResult struct {
	Rows   []models.RawRow `json:"rows"`
	Errors []string        `json:"errors,omitempty"`
}

// ParseCSV reads a CSV stream: first row is the header, the remainder is
// data. Rows whose column count does not match the header are skipped
// individually and recorded in Errors rather than aborting the file.
func ParseCSV(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	normalizeHeaders(headers)

	result := &ParseResult{Rows: make([]models.RawRow, 0)}
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}
		if len(record) != len(headers) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("line %d: expected %d columns, got %d", lineNum, len(headers), len(record)))
			continue
		}

		row := make(models.RawRow, len(headers)+1)
		for i, value := range record {
			row[headers[i]] = strings.TrimSpace(value)
		}
		row[models.RowLineKey] = strconv.Itoa(lineNum)
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// ParseXLSX reads the first sheet of a workbook into the same row shape as
// ParseCSV. excelize returns every cell as its display string, so numeric
// cells already match the CSV path.
func ParseXLSX(r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	sheetRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(sheetRows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheetName)
	}

	headers := sheetRows[0]
	normalizeHeaders(headers)

	result := &ParseResult{Rows: make([]models.RawRow, 0, len(sheetRows)-1)}
	for rowIdx, sheetRow := range sheetRows[1:] {
		// GetRows truncates trailing empty cells, so a short row is normal
		// for a workbook; pad instead of rejecting.
		row := make(models.RawRow, len(headers)+1)
		for i, header := range headers {
			if i < len(sheetRow) {
				row[header] = strings.TrimSpace(sheetRow[i])
			} else {
				row[header] = ""
			}
		}
		row[models.RowLineKey] = strconv.Itoa(rowIdx + 2)
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func normalizeHeaders(headers []string) {
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}
}
