package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"storefront-service/internal/models"
)

// CatalogWriter persists one product (with variants) as a unit, keyed by
// SKU. Implemented by the products repository.
type CatalogWriter interface {
	UpsertBySKU(merchantID string, product *models.Product, updateExisting bool) (created bool, err error)
}

// AssetUploader pushes extracted archive entries to the image store.
// Implemented by the S3 asset store.
type AssetUploader interface {
	Upload(ctx context.Context, key string, content []byte) (string, error)
}

// CommitInput is everything a commit needs, resolved up front: the staged
// rows, the raw archive, and the category map loaded once for the batch.
type CommitInput struct {
	MerchantID        string
	ActorID           string
	Rows              []models.ValidatedRow
	Mode              models.ImportMode
	ZipData           []byte
	CategoryMap       map[string]string // lower(name) -> id
	DefaultCategoryID string
	UpdateExisting    bool
}

// Engine turns staged valid rows into persisted catalog entries with
// partial-failure semantics: a row's mutations are attempted as a unit, and
// one row's failure never rolls back or blocks the others.
type Engine struct {
	catalog   CatalogWriter
	assets    AssetUploader
	zipLimits ZipLimits
	logger    *logrus.Entry
}

// NewEngine creates a commit engine
func NewEngine(catalog CatalogWriter, assets AssetUploader, logger *logrus.Logger) *Engine {
	return &Engine{
		catalog:   catalog,
		assets:    assets,
		zipLimits: DefaultZipLimits(),
		logger:    logger.WithField("component", "commit-engine"),
	}
}

// Commit processes rows sequentially, skipping rows with validation errors.
// Image uploads belonging to one row are issued concurrently.
func (e *Engine) Commit(ctx context.Context, in CommitInput) *models.CommitResult {
	start := time.Now()
	result := &models.CommitResult{Failures: make([]models.RowFailure, 0)}

	for i := range in.Rows {
		row := &in.Rows[i]
		if !row.Valid() {
			continue
		}
		e.commitRow(ctx, in, row, result)
	}

	result.ProcessingMs = time.Since(start).Milliseconds()
	e.logger.WithFields(logrus.Fields{
		"merchant_id": in.MerchantID,
		"inserted":    result.InsertedCount,
		"updated":     result.UpdatedCount,
		"failed":      result.FailedCount,
		"images":      result.UploadedImages,
	}).Info("import commit finished")

	return result
}

func (e *Engine) commitRow(ctx context.Context, in CommitInput, row *models.ValidatedRow, result *models.CommitResult) {
	categoryID, err := resolveCategory(row.CategoryName, in.CategoryMap, in.DefaultCategoryID)
	if err != nil {
		e.failRow(result, row, "category unresolved", models.FieldError{Field: "category", Message: err.Error()})
		return
	}

	imageURLs, uploaded, err := e.resolveImages(ctx, in, row)
	result.UploadedImages += uploaded
	if err != nil {
		e.failRow(result, row, "image upload failed", models.FieldError{Field: "images", Message: err.Error()})
		return
	}

	product := buildProduct(in, row, categoryID, imageURLs)
	created, err := e.catalog.UpsertBySKU(in.MerchantID, product, in.UpdateExisting)
	if err != nil {
		e.failRow(result, row, "catalog write failed", models.FieldError{Field: "sku", Message: err.Error()})
		return
	}

	if created {
		result.InsertedCount++
	} else {
		result.UpdatedCount++
	}
}

func (e *Engine) failRow(result *models.CommitResult, row *models.ValidatedRow, reason string, errs ...models.FieldError) {
	result.FailedCount++
	result.Failures = append(result.Failures, models.RowFailure{
		RowIndex: row.RowIndex,
		SKU:      row.SKU,
		Name:     row.Name,
		Reason:   reason,
		Errors:   errs,
	})
	e.logger.WithFields(logrus.Fields{
		"row": row.RowIndex,
		"sku": row.SKU,
	}).WithField("reason", reason).Warn("import row failed")
}

// resolveImages returns the final image URLs for a row. In URL mode they
// pass straight through; in ZIP mode each referenced entry is extracted and
// uploaded, concurrently within the row. The returned count reflects
// uploads that actually completed, even when the row goes on to fail.
func (e *Engine) resolveImages(ctx context.Context, in CommitInput, row *models.ValidatedRow) ([]string, int, error) {
	if in.Mode == models.ImportModeURL || len(row.ImageFileRefs) == 0 {
		return row.ImageURLs, 0, nil
	}

	urls := make([]string, len(row.ImageFileRefs))
	errs := make([]error, len(row.ImageFileRefs))
	uploaded := 0

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, name := range row.ImageFileRefs {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			content, err := ExtractFile(in.ZipData, name, e.zipLimits)
			if err != nil {
				errs[i] = err
				return
			}
			key := fmt.Sprintf("%s/imports/%s/%s", in.MerchantID, row.SKU, strings.ToLower(name))
			url, err := e.assets.Upload(ctx, key, content)
			if err != nil {
				errs[i] = err
				return
			}
			urls[i] = url
			mu.Lock()
			uploaded++
			mu.Unlock()
		}(i, name)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, uploaded, err
		}
	}
	return urls, uploaded, nil
}

// resolveCategory maps a row's category name through the preloaded map,
// falling back to the merchant default. A missing default fails only this
// row, never the batch.
func resolveCategory(name string, categoryMap map[string]string, defaultID string) (string, error) {
	if id, ok := categoryMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	if defaultID != "" {
		return defaultID, nil
	}
	return "", fmt.Errorf("category %q not found and no default category is configured", name)
}

func buildProduct(in CommitInput, row *models.ValidatedRow, categoryID string, imageURLs []string) *models.Product {
	product := &models.Product{
		MerchantID:   in.MerchantID,
		CategoryID:   categoryID,
		Name:         row.Name,
		SKU:          row.SKU,
		Price:        strconv.FormatFloat(row.Price, 'f', 2, 64),
		CurrencyCode: row.Currency,
		Stock:        row.Stock,
		Status:       models.ProductStatusActive,
	}
	if row.Description != "" {
		product.Description = &row.Description
	}
	if in.ActorID != "" {
		actor := in.ActorID
		product.CreatedBy = &actor
		product.UpdatedBy = &actor
	}

	if len(imageURLs) > 0 {
		images := make(models.JSONArray, 0, len(imageURLs))
		for pos, url := range imageURLs {
			images = append(images, models.ProductImage{URL: url, Position: pos})
		}
		product.Images = &images
	}

	for _, v := range row.Variants {
		attrs := make(models.JSON, len(v.Attributes))
		for k, val := range v.Attributes {
			attrs[k] = val
		}
		product.Variants = append(product.Variants, &models.ProductVariant{
			SKU:        v.SKU,
			Price:      strconv.FormatFloat(v.MerchantPrice, 'f', 2, 64),
			Stock:      v.Stock,
			Attributes: &attrs,
		})
	}

	return product
}
