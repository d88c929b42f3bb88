package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ProductImage represents one image attached to a product
type ProductImage struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	AltText  *string `json:"altText,omitempty"`
	Position int     `json:"position"`
}

// Product represents a catalog product entity
type Product struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MerchantID   string            `json:"merchantId" gorm:"not null;index:idx_products_merchant_id;index:idx_products_merchant_sku,unique"`
	CategoryID   string            `json:"categoryId" gorm:"not null;index"`
	Name         string            `json:"name" gorm:"not null"`
	Slug         *string           `json:"slug,omitempty" gorm:"index"`
	SKU          string            `json:"sku" gorm:"not null;index:idx_products_merchant_sku,unique"`
	Description  *string           `json:"description,omitempty"`
	Price        string            `json:"price" gorm:"not null"`
	CurrencyCode string            `json:"currencyCode" gorm:"not null;default:'USD'"`
	Stock        int               `json:"stock" gorm:"not null;default:0"`
	Status       ProductStatus     `json:"status" gorm:"not null;default:'DRAFT'"`
	Images       *JSONArray        `json:"images,omitempty" gorm:"type:jsonb"`
	Attributes   *JSON             `json:"attributes,omitempty" gorm:"type:jsonb"`
	Variants     []*ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	DeletedAt    *gorm.DeletedAt   `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy    *string           `json:"createdBy,omitempty"`
	UpdatedBy    *string           `json:"updatedBy,omitempty"`
}

// ProductVariant represents a product variant
type ProductVariant struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID  uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index"`
	MerchantID string          `json:"merchantId" gorm:"not null;index:idx_variants_merchant_sku,unique"`
	SKU        string          `json:"sku" gorm:"not null;index:idx_variants_merchant_sku,unique"`
	Price      string          `json:"price" gorm:"not null"`
	Stock      int             `json:"stock" gorm:"not null;default:0"`
	Attributes *JSON           `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DeletedAt  *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductVariant model
func (ProductVariant) TableName() string {
	return "product_variants"
}
