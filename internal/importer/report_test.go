package importer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
)

func sampleFailures() []models.RowFailure {
	return []models.RowFailure{
		{
			RowIndex: 0,
			SKU:      "A1",
			Name:     "Shirt",
			Reason:   "validation failed",
			Errors: []models.FieldError{
				{Field: "price", Message: "price must be a valid number"},
				{Field: "stock", Message: "stock must not be negative"},
			},
		},
		{
			RowIndex: 4,
			SKU:      "B2",
			Name:     `Mug, "large"`,
			Reason:   "catalog write failed",
			Errors:   []models.FieldError{{Field: "sku", Message: "duplicate key"}},
		},
	}
}

func TestFailureReportCSV(t *testing.T) {
	out := FailureReportCSV(sampleFailures())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "row,sku,name,reason,errors", lines[0])

	// Rows are 1-indexed in the report
	assert.True(t, strings.HasPrefix(lines[1], "1,A1,"))
	assert.Contains(t, lines[1], "price: price must be a valid number; stock: stock must not be negative")
	assert.True(t, strings.HasPrefix(lines[2], "5,B2,"))
}

func TestFailureReportCSVRoundTripsThroughParser(t *testing.T) {
	out := FailureReportCSV(sampleFailures())

	// The report must be well-formed CSV even with quotes and commas in
	// product names; our own parser is the proof.
	result, err := ParseCSV(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Empty(t, result.Errors)
	assert.Equal(t, `Mug, "large"`, result.Rows[1]["name"])
}

func TestFailureReportCSVEmpty(t *testing.T) {
	out := FailureReportCSV(nil)
	assert.Equal(t, "row,sku,name,reason,errors\n", out)
}

func TestFailureReportJSON(t *testing.T) {
	data, err := FailureReportJSON(sampleFailures())
	require.NoError(t, err)

	var decoded struct {
		Failures []models.RowFailure `json:"failures"`
		Count    int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded.Count)
	assert.Equal(t, "A1", decoded.Failures[0].SKU)
}

func TestFailureReportJSONNilFailures(t *testing.T) {
	data, err := FailureReportJSON(nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"count": 0`)
	assert.Contains(t, string(data), `"failures": []`)
}

func TestValidationFailures(t *testing.T) {
	rows := []models.RawRow{
		goodRow(nil),
		goodRow(map[string]string{"sku": "B2", "price": "oops"}),
	}
	result := ValidateRows(rows, ValidateOptions{})

	failures := ValidationFailures(result)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].RowIndex)
	assert.Equal(t, "B2", failures[0].SKU)
	assert.Equal(t, "validation failed", failures[0].Reason)
	assert.NotEmpty(t, failures[0].Errors)
}
