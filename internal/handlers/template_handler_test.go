package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"storefront-service/internal/importer"
)

func newTemplateEnv(t *testing.T) *importTestEnv {
	t.Helper()
	return newImportTestEnv(t, &stubCategories{})
}

func TestGetImportTemplateJSON(t *testing.T) {
	env := newTemplateEnv(t)

	w := env.do(t, owner, http.MethodGet, "/api/v1/products/import/template", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool `json:"success"`
		Template struct {
			Entity  string `json:"entity"`
			Columns []struct {
				Name     string `json:"name"`
				Required bool   `json:"required"`
			} `json:"columns"`
			SampleData []map[string]string `json:"sampleData"`
		} `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "products", resp.Template.Entity)
	assert.NotEmpty(t, resp.Template.SampleData)

	names := make(map[string]bool)
	required := make(map[string]bool)
	for _, col := range resp.Template.Columns {
		names[col.Name] = true
		required[col.Name] = col.Required
	}
	for _, want := range []string{"sku", "name", "price", "currency", "category", "stock", "image_urls", "image_files", "variants_json"} {
		assert.True(t, names[want], "missing column %s", want)
	}
	assert.True(t, required["sku"])
	assert.False(t, required["image_urls"])
}

func TestGetImportTemplateCSVParsesBack(t *testing.T) {
	env := newTemplateEnv(t)

	w := env.do(t, owner, http.MethodGet, "/api/v1/products/import/template?format=csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "products_import_template.csv")

	// The template goes through the same parser as a real upload
	result, err := importer.ParseCSV(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Rows)
	assert.NotEmpty(t, result.Rows[0]["sku"])
}

func TestGetImportTemplateXLSX(t *testing.T) {
	env := newTemplateEnv(t)

	w := env.do(t, owner, http.MethodGet, "/api/v1/products/import/template?format=xlsx", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "products_import_template.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Products")
	assert.Contains(t, sheets, "Instructions")

	// The Products sheet parses through the same path as a real upload
	result, err := importer.ParseXLSX(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Rows)
	assert.NotEmpty(t, result.Rows[0]["sku"])
}
