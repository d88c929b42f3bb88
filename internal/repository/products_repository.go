package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"storefront-service/internal/models"
)

// ErrDuplicateSKU is returned by insert-only upserts when the SKU already
// exists for the merchant
var ErrDuplicateSKU = errors.New("product with this SKU already exists")

// ProductsRepository handles database operations for products
type ProductsRepository struct {
	db *gorm.DB
}

// NewProductsRepository creates a new products repository
func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{db: db}
}

// ExistingSKUs returns which of the given SKUs already exist for the
// merchant, in a single query. Soft-deleted records count because the
// unique index does.
func (r *ProductsRepository) ExistingSKUs(merchantID string, skus []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(skus))
	if len(skus) == 0 {
		return existing, nil
	}

	var found []string
	err := r.db.Unscoped().Model(&models.Product{}).
		Where("merchant_id = ? AND sku IN ?", merchantID, skus).
		Pluck("sku", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing SKUs: %w", err)
	}

	for _, sku := range found {
		existing[sku] = true
	}
	return existing, nil
}

// UpsertBySKU writes one product and its variants as a unit, keyed by
// (merchant_id, sku). With updateExisting false the call is insert-only and
// an existing SKU fails with ErrDuplicateSKU; with updateExisting true a
// matching product is updated in place and its variants replaced. The
// transaction guarantees no partial product record survives a failed row.
//
// SECURITY: the merchant id is always taken from the argument, never from
// the product payload.
func (r *ProductsRepository) UpsertBySKU(merchantID string, product *models.Product, updateExisting bool) (bool, error) {
	created := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		product.MerchantID = merchantID

		var existing models.Product
		err := tx.Where("merchant_id = ? AND sku = ?", merchantID, product.SKU).First(&existing).Error
		switch {
		case err == nil:
			if !updateExisting {
				return ErrDuplicateSKU
			}
			return r.updateExisting(tx, &existing, product)

		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return r.createNew(tx, product)

		default:
			return fmt.Errorf("failed to look up SKU %q: %w", product.SKU, err)
		}
	})
	return created, err
}

func (r *ProductsRepository) createNew(tx *gorm.DB, product *models.Product) error {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Slug == nil || *product.Slug == "" {
		slug := fmt.Sprintf("%s-%s", generateSlug(product.Name), product.ID.String()[:8])
		product.Slug = &slug
	}
	for _, v := range product.Variants {
		v.ProductID = product.ID
		v.MerchantID = product.MerchantID
		v.CreatedAt = now
		v.UpdatedAt = now
	}
	if err := tx.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product %q: %w", product.SKU, err)
	}
	return nil
}

func (r *ProductsRepository) updateExisting(tx *gorm.DB, existing, incoming *models.Product) error {
	now := time.Now()
	updates := map[string]interface{}{
		"name":          incoming.Name,
		"description":   incoming.Description,
		"price":         incoming.Price,
		"currency_code": incoming.CurrencyCode,
		"category_id":   incoming.CategoryID,
		"stock":         incoming.Stock,
		"updated_at":    now,
	}
	if incoming.Images != nil {
		updates["images"] = incoming.Images
	}
	if incoming.UpdatedBy != nil {
		updates["updated_by"] = incoming.UpdatedBy
	}

	if err := tx.Model(existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update product %q: %w", incoming.SKU, err)
	}

	// Variants are replaced wholesale: the import file is the new truth.
	// Hard delete, or the unique (merchant_id, sku) index would reject the
	// re-inserted SKUs.
	if len(incoming.Variants) > 0 {
		if err := tx.Unscoped().Where("product_id = ?", existing.ID).Delete(&models.ProductVariant{}).Error; err != nil {
			return fmt.Errorf("failed to clear variants for %q: %w", incoming.SKU, err)
		}
		for _, v := range incoming.Variants {
			v.ProductID = existing.ID
			v.MerchantID = existing.MerchantID
			v.CreatedAt = now
			v.UpdatedAt = now
		}
		if err := tx.Create(incoming.Variants).Error; err != nil {
			return fmt.Errorf("failed to write variants for %q: %w", incoming.SKU, err)
		}
	}

	incoming.ID = existing.ID
	return nil
}

// GetProduct fetches one product with its variants, merchant-scoped
func (r *ProductsRepository) GetProduct(merchantID string, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.Preload("Variants").
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// generateSlug converts a product name to a URL-friendly slug
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugCleaner.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
