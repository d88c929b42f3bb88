package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"storefront-service/internal/models"
)

var reportHeader = []string{"row", "sku", "name", "reason", "errors"}

// FailureReportCSV renders commit (or validation) failures as RFC4180 CSV.
// Row numbers are 1-indexed for end-user display, and each row's field
// errors are flattened into one semicolon-joined column. Pure transform:
// no validation happens here.
func FailureReportCSV(failures []models.RowFailure) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write(reportHeader)
	for _, f := range failures {
		w.Write([]string{
			strconv.Itoa(f.RowIndex + 1),
			f.SKU,
			f.Name,
			f.Reason,
			joinFieldErrors(f.Errors),
		})
	}
	w.Flush()

	return buf.String()
}

// FailureReportJSON renders the same report as indented JSON
func FailureReportJSON(failures []models.RowFailure) ([]byte, error) {
	if failures == nil {
		failures = []models.RowFailure{}
	}
	return json.MarshalIndent(map[string]interface{}{
		"failures": failures,
		"count":    len(failures),
	}, "", "  ")
}

// ValidationFailures converts a validation result's invalid rows to the
// failure shape so a pre-commit report can use the same renderers.
func ValidationFailures(result *models.ValidationResult) []models.RowFailure {
	failures := make([]models.RowFailure, 0)
	for _, row := range result.Rows {
		if row.Valid() {
			continue
		}
		failures = append(failures, models.RowFailure{
			RowIndex: row.RowIndex,
			SKU:      row.SKU,
			Name:     row.Name,
			Reason:   "validation failed",
			Errors:   row.Errors,
		})
	}
	return failures
}

func joinFieldErrors(errs []models.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Field != "" {
			parts = append(parts, e.Field+": "+e.Message)
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
