package importer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"storefront-service/internal/models"
)

// ValidateOptions carries the collaborators the validator checks rows against
type ValidateOptions struct {
	// Assets is the index of the uploaded ZIP, nil when no archive was sent
	Assets *AssetCatalog
	// ExistingSKUs marks SKUs already present in the merchant's catalog,
	// used for will-update warnings
	ExistingSKUs map[string]bool
}

var requiredColumns = []string{"sku", "name", "price", "currency", "category", "stock"}

// ValidateRows applies per-row and cross-row validation to parsed rows.
// Invalid rows are never dropped: they stay in Rows with populated Errors,
// preserving original order and index, so the preview, commit and failure
// report all correlate by RowIndex.
//
// The image-sourcing mode is a file-level property, detected from the first
// row that populates image_urls or image_files. Rows that use the other
// column are flagged with a row error instead of silently mixing modes.
func ValidateRows(rows []models.RawRow, opts ValidateOptions) *models.ValidationResult {
	result := &models.ValidationResult{
		Rows:      make([]models.ValidatedRow, 0, len(rows)),
		TotalRows: len(rows),
		Mode:      detectMode(rows),
	}

	skuRows := make(map[string][]int) // sku -> indexes of rows declaring it

	for i, raw := range rows {
		row := validateRow(i, raw, result.Mode, opts)
		if row.SKU != "" {
			skuRows[row.SKU] = append(skuRows[row.SKU], i)
		}
		result.Rows = append(result.Rows, row)
	}

	// Duplicate SKUs are a cross-row violation: every row sharing the SKU is
	// flagged, not just the later occurrences.
	for sku, indexes := range skuRows {
		if len(indexes) < 2 {
			continue
		}
		result.DuplicateSkus = append(result.DuplicateSkus, sku)
		for _, i := range indexes {
			result.Rows[i].Errors = append(result.Rows[i].Errors, models.FieldError{
				Field:   "sku",
				Message: fmt.Sprintf("duplicate SKU %q appears %d times in file", sku, len(indexes)),
			})
		}
	}
	sort.Strings(result.DuplicateSkus)

	for i := range result.Rows {
		row := &result.Rows[i]
		if row.Valid() {
			result.ValidRows++
			if opts.ExistingSKUs[row.SKU] {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: SKU %q already exists and will be updated if updateExisting is set", row.RowIndex+1, row.SKU))
			}
		} else {
			result.InvalidRows++
		}
	}

	return result
}

// detectMode returns the file-level image-sourcing mode from the first row
// populating either image column. Files with no image columns at all default
// to URL mode, which leaves every row imageless and valid.
func detectMode(rows []models.RawRow) models.ImportMode {
	for _, raw := range rows {
		if strings.TrimSpace(raw["image_urls"]) != "" {
			return models.ImportModeURL
		}
		if strings.TrimSpace(raw["image_files"]) != "" {
			return models.ImportModeZIP
		}
	}
	return models.ImportModeURL
}

func validateRow(index int, raw models.RawRow, mode models.ImportMode, opts ValidateOptions) models.ValidatedRow {
	row := models.ValidatedRow{
		RowIndex:     index,
		SKU:          strings.TrimSpace(raw["sku"]),
		Name:         strings.TrimSpace(raw["name"]),
		Description:  strings.TrimSpace(raw["description"]),
		Currency:     strings.ToUpper(strings.TrimSpace(raw["currency"])),
		CategoryName: strings.TrimSpace(raw["category"]),
	}

	for _, col := range requiredColumns {
		if strings.TrimSpace(raw[col]) == "" {
			row.Errors = append(row.Errors, models.FieldError{Field: col, Message: col + " is required"})
		}
	}

	if v := strings.TrimSpace(raw["price"]); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil:
			row.Errors = append(row.Errors, models.FieldError{Field: "price", Message: "price must be a valid number"})
		case price < 0:
			row.Errors = append(row.Errors, models.FieldError{Field: "price", Message: "price must not be negative"})
		default:
			row.Price = price
		}
	}

	if v := strings.TrimSpace(raw["stock"]); v != "" {
		stock, err := strconv.Atoi(v)
		switch {
		case err != nil:
			row.Errors = append(row.Errors, models.FieldError{Field: "stock", Message: "stock must be a whole number"})
		case stock < 0:
			row.Errors = append(row.Errors, models.FieldError{Field: "stock", Message: "stock must not be negative"})
		default:
			row.Stock = stock
		}
	}

	validateImages(&row, raw, mode, opts.Assets)

	if v := strings.TrimSpace(raw["variants_json"]); v != "" {
		validateVariants(&row, v)
	}

	return row
}

func validateImages(row *models.ValidatedRow, raw models.RawRow, mode models.ImportMode, assets *AssetCatalog) {
	urls := splitPipeList(raw["image_urls"])
	files := splitPipeList(raw["image_files"])

	switch mode {
	case models.ImportModeURL:
		if len(files) > 0 {
			row.Errors = append(row.Errors, models.FieldError{
				Field:   "image_files",
				Message: "file is in URL mode; image_files is not allowed here",
			})
		}
		for _, u := range urls {
			if !isAbsoluteURL(u) {
				row.Errors = append(row.Errors, models.FieldError{
					Field:   "image_urls",
					Message: fmt.Sprintf("%q is not an absolute http(s) URL", u),
				})
				continue
			}
			row.ImageURLs = append(row.ImageURLs, u)
		}

	case models.ImportModeZIP:
		if len(urls) > 0 {
			row.Errors = append(row.Errors, models.FieldError{
				Field:   "image_urls",
				Message: "file is in ZIP mode; image_urls is not allowed here",
			})
		}
		for _, name := range files {
			if assets == nil {
				row.Errors = append(row.Errors, models.FieldError{
					Field:   "image_files",
					Message: "no image archive was uploaded with this file",
				})
				break
			}
			if _, ok := assets.Lookup(name); !ok {
				row.Errors = append(row.Errors, models.FieldError{
					Field:   "image_files",
					Message: fmt.Sprintf("%q not found in uploaded archive", name),
				})
				continue
			}
			row.ImageFileRefs = append(row.ImageFileRefs, name)
		}
	}
}

// validateVariants parses the variants_json column. A malformed payload
// invalidates only its own row.
func validateVariants(row *models.ValidatedRow, payload string) {
	var variants []models.VariantRow
	if err := json.Unmarshal([]byte(payload), &variants); err != nil {
		row.Errors = append(row.Errors, models.FieldError{
			Field:   "variants_json",
			Message: "variants_json must be a JSON array of variant objects",
		})
		return
	}

	seen := map[string]bool{row.SKU: true}
	for i, v := range variants {
		field := fmt.Sprintf("variants_json[%d]", i)
		if strings.TrimSpace(v.SKU) == "" {
			row.Errors = append(row.Errors, models.FieldError{Field: field, Message: "variant sku is required"})
			continue
		}
		if seen[v.SKU] {
			row.Errors = append(row.Errors, models.FieldError{
				Field:   field,
				Message: fmt.Sprintf("variant SKU %q collides with its parent or a sibling", v.SKU),
			})
		}
		seen[v.SKU] = true
		if v.MerchantPrice < 0 {
			row.Errors = append(row.Errors, models.FieldError{Field: field, Message: "variant merchantPrice must not be negative"})
		}
		if v.Stock < 0 {
			row.Errors = append(row.Errors, models.FieldError{Field: field, Message: "variant stock must not be negative"})
		}
	}

	row.Variants = variants
}

func splitPipeList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
