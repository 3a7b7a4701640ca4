package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProductStatus represents the publication status of a product or shop product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// IsValid reports whether s is a known status
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusInactive, ProductStatusArchived:
		return true
	}
	return false
}

// Translations maps a locale (e.g. "en", "de") to a localized string
type Translations = datatypes.JSONType[map[string]string]

// NewTranslations wraps a locale map for storage
func NewTranslations(values map[string]string) Translations {
	if values == nil {
		values = map[string]string{}
	}
	return datatypes.NewJSONType(values)
}

// JSON holds free-form product metadata in a JSONB column
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

// Product is the canonical catalogue record shared by every shop.
// OptionSlugs holds filter segments ("attribute-option") so the catalogue can
// match and count them without joining the options table.
type Product struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string         `json:"tenantId" gorm:"not null;index:idx_products_tenant_rubric;index:idx_products_tenant_slug,unique"`
	RubricID      uuid.UUID      `json:"rubricId" gorm:"type:uuid;not null;index:idx_products_tenant_rubric"`
	Slug          string         `json:"slug" gorm:"not null;index:idx_products_tenant_slug,unique"`
	Article       *string        `json:"article,omitempty"`
	Name          Translations   `json:"name" gorm:"type:jsonb;not null"`
	Description   Translations   `json:"description" gorm:"type:jsonb"`
	BrandSlug     *string        `json:"brandSlug,omitempty" gorm:"index"`
	CategorySlugs pq.StringArray `json:"categorySlugs" gorm:"type:text[]"`
	OptionSlugs   pq.StringArray `json:"optionSlugs" gorm:"type:text[];index:,type:gin"`
	Status        ProductStatus  `json:"status" gorm:"not null;default:'DRAFT';index"`
	Priority      int            `json:"priority" gorm:"not null;default:0"`
	MainImage     *string        `json:"mainImage,omitempty"`
	SearchText    string         `json:"-" gorm:"type:text"`
	Metadata      *JSON          `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	CreatedBy     *string        `json:"createdBy,omitempty"`
	UpdatedBy     *string        `json:"updatedBy,omitempty"`
}

// ShopProduct is a per-shop price and stock record for a product.
// Rubric, brand, categories, options and search text are copied from the
// product on every write so catalogue queries stay on a single table.
type ShopProduct struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string         `json:"tenantId" gorm:"not null;index:idx_shop_products_tenant_rubric;index:idx_shop_products_shop_product,unique"`
	ShopID        uuid.UUID      `json:"shopId" gorm:"type:uuid;not null;index:idx_shop_products_shop_product,unique"`
	ProductID     uuid.UUID      `json:"productId" gorm:"type:uuid;not null;index:idx_shop_products_shop_product,unique;index"`
	Price         int64          `json:"price" gorm:"not null"`
	OldPrice      *int64         `json:"oldPrice,omitempty"`
	Available     int            `json:"available" gorm:"not null;default:0"`
	Status        ProductStatus  `json:"status" gorm:"not null;default:'ACTIVE';index"`
	RubricID      uuid.UUID      `json:"rubricId" gorm:"type:uuid;not null;index:idx_shop_products_tenant_rubric"`
	ProductSlug   string         `json:"productSlug" gorm:"not null"`
	BrandSlug     *string        `json:"brandSlug,omitempty" gorm:"index"`
	CategorySlugs pq.StringArray `json:"categorySlugs" gorm:"type:text[]"`
	OptionSlugs   pq.StringArray `json:"optionSlugs" gorm:"type:text[];index:,type:gin"`
	Priority      int            `json:"priority" gorm:"not null;default:0"`
	SearchText    string         `json:"-" gorm:"type:text"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ShopProduct model
func (ShopProduct) TableName() string {
	return "shop_products"
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	RubricID      string            `json:"rubricId" binding:"required,uuid"`
	Name          map[string]string `json:"name" binding:"required"`
	Description   map[string]string `json:"description,omitempty"`
	Slug          *string           `json:"slug,omitempty"`
	Article       *string           `json:"article,omitempty"`
	BrandSlug     *string           `json:"brandSlug,omitempty"`
	CategorySlugs []string          `json:"categorySlugs,omitempty"`
	OptionSlugs   []string          `json:"optionSlugs,omitempty"`
	Priority      *int              `json:"priority,omitempty"`
	MainImage     *string           `json:"mainImage,omitempty"`
	Metadata      JSON              `json:"metadata,omitempty"`
}

// UpdateProductRequest represents a request to update a product
type UpdateProductRequest struct {
	RubricID      *string           `json:"rubricId,omitempty" binding:"omitempty,uuid"`
	Name          map[string]string `json:"name,omitempty"`
	Description   map[string]string `json:"description,omitempty"`
	Slug          *string           `json:"slug,omitempty"`
	Article       *string           `json:"article,omitempty"`
	BrandSlug     *string           `json:"brandSlug,omitempty"`
	CategorySlugs []string          `json:"categorySlugs,omitempty"`
	OptionSlugs   []string          `json:"optionSlugs,omitempty"`
	Priority      *int              `json:"priority,omitempty"`
	MainImage     *string           `json:"mainImage,omitempty"`
	Metadata      JSON              `json:"metadata,omitempty"`
}

// UpdateProductStatusRequest represents a request to update product status
type UpdateProductStatusRequest struct {
	Status ProductStatus `json:"status" binding:"required"`
}

// UpsertShopProductRequest creates or updates the shop product for (shopId, productId)
type UpsertShopProductRequest struct {
	ShopID    string         `json:"shopId" binding:"required,uuid"`
	ProductID string         `json:"productId" binding:"required,uuid"`
	Price     int64          `json:"price" binding:"min=0"`
	OldPrice  *int64         `json:"oldPrice,omitempty"`
	Available int            `json:"available" binding:"min=0"`
	Status    *ProductStatus `json:"status,omitempty"`
}

// UpdateShopProductRequest represents a partial shop product update
type UpdateShopProductRequest struct {
	Price     *int64         `json:"price,omitempty" binding:"omitempty,min=0"`
	OldPrice  *int64         `json:"oldPrice,omitempty"`
	Available *int           `json:"available,omitempty" binding:"omitempty,min=0"`
	Status    *ProductStatus `json:"status,omitempty"`
}
