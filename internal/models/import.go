package models

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportMode declares how a batch sources product images: remote URLs or
// entries bundled in an uploaded ZIP archive. The mode is a file-level
// property detected from the first row that populates either image column.
type ImportMode string

const (
	ImportModeURL ImportMode = "URL"
	ImportModeZIP ImportMode = "ZIP"
)

// RawRow is a parsed data row, column name -> raw string value.
// Both the CSV and XLSX paths emit this shape. The "_row" key carries the
// 1-based line number in the original file for error reporting.
type RawRow = map[string]string

// RowLineKey is the bookkeeping column holding the original file line
const RowLineKey = "_row"

// FieldError is a field-level validation or commit error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// VariantRow is one entry of a row's variants_json array
type VariantRow struct {
	SKU           string            `json:"sku"`
	Attributes    map[string]string `json:"attributes"`
	MerchantPrice float64           `json:"merchantPrice"`
	Stock         int               `json:"stock"`
}

// ValidatedRow is the validator's verdict on one data row. Invalid rows are
// retained with populated Errors so previews and reports can reference them
// by their original index.
type ValidatedRow struct {
	RowIndex      int          `json:"rowIndex"`
	SKU           string       `json:"sku"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Price         float64      `json:"price"`
	Currency      string       `json:"currency"`
	CategoryName  string       `json:"categoryName"`
	Stock         int          `json:"stock"`
	ImageURLs     []string     `json:"imageUrls,omitempty"`
	ImageFileRefs []string     `json:"imageFileRefs,omitempty"`
	Variants      []VariantRow `json:"variants,omitempty"`
	Errors        []FieldError `json:"errors,omitempty"`
}

// Valid reports whether the row has no blocking errors
func (r *ValidatedRow) Valid() bool {
	return len(r.Errors) == 0
}

// ValidationResult is the outcome of validating a parsed file.
// Invariant: ValidRows + InvalidRows == TotalRows.
type ValidationResult struct {
	Rows          []ValidatedRow `json:"rows"`
	TotalRows     int            `json:"totalRows"`
	ValidRows     int            `json:"validRows"`
	InvalidRows   int            `json:"invalidRows"`
	Mode          ImportMode     `json:"mode"`
	Errors        []string       `json:"errors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	DuplicateSkus []string       `json:"duplicateSkus,omitempty"`
}

// RowFailure records one row that failed during commit
type RowFailure struct {
	RowIndex int          `json:"rowIndex"`
	SKU      string       `json:"sku"`
	Name     string       `json:"name"`
	Reason   string       `json:"reason"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// CommitResult aggregates the partial-failure outcome of a commit. One row's
// failure never rolls back or blocks others; the counters and Failures list
// are the sole signal of partial success.
type CommitResult struct {
	InsertedCount  int          `json:"insertedCount"`
	UpdatedCount   int          `json:"updatedCount"`
	FailedCount    int          `json:"failedCount"`
	UploadedImages int          `json:"uploadedImages"`
	Failures       []RowFailure `json:"failures,omitempty"`
	ProcessingMs   int64        `json:"processingMs"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, json
	Example     string `json:"example"`
}

// ImportTemplate defines the on-wire column contract for bulk import
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "sku", Description: "Unique product SKU", Required: true, Type: "string", Example: "TSH-BLU-001"},
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: "Soft 100% cotton tee"},
		{Name: "price", Description: "Product price", Required: true, Type: "number", Example: "29.99"},
		{Name: "currency", Description: "ISO currency code", Required: true, Type: "string", Example: "USD"},
		{Name: "category", Description: "Category name - falls back to the store default when unknown", Required: true, Type: "string", Example: "Clothing"},
		{Name: "stock", Description: "Initial stock quantity", Required: true, Type: "number", Example: "25"},
		{Name: "image_urls", Description: "Pipe-delimited absolute image URLs (URL mode)", Required: false, Type: "string", Example: "https://cdn.example.com/a.jpg|https://cdn.example.com/b.jpg"},
		{Name: "image_files", Description: "Pipe-delimited filenames inside the uploaded ZIP (ZIP mode)", Required: false, Type: "string", Example: "tshirt-front.jpg|tshirt-back.jpg"},
		{Name: "variants_json", Description: "JSON array of variants: sku, attributes, merchantPrice, stock", Required: false, Type: "json", Example: `[{"sku":"TSH-BLU-001-S","attributes":{"size":"S"},"merchantPrice":29.99,"stock":10}]`},
	}
}

// ProductImportTemplate returns the template definition for products,
// with one example row per image-sourcing mode plus one variant example.
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
		SampleData: []map[string]string{
			{
				"sku": "TSH-BLU-001", "name": "Blue Cotton T-Shirt", "description": "Soft 100% cotton tee",
				"price": "29.99", "currency": "USD", "category": "Clothing", "stock": "25",
				"image_urls": "https://cdn.example.com/tshirt.jpg", "image_files": "", "variants_json": "",
			},
			{
				"sku": "MUG-RED-002", "name": "Red Ceramic Mug", "description": "350ml ceramic mug",
				"price": "12.50", "currency": "USD", "category": "Kitchen", "stock": "100",
				"image_urls": "", "image_files": "mug-red.jpg", "variants_json": "",
			},
			{
				"sku": "TSH-GRN-003", "name": "Green Cotton T-Shirt", "description": "",
				"price": "29.99", "currency": "USD", "category": "Clothing", "stock": "40",
				"image_urls": "https://cdn.example.com/tshirt-green.jpg", "image_files": "",
				"variants_json": `[{"sku":"TSH-GRN-003-S","attributes":{"size":"S"},"merchantPrice":29.99,"stock":20},{"sku":"TSH-GRN-003-M","attributes":{"size":"M"},"merchantPrice":29.99,"stock":20}]`,
			},
		},
	}
}
