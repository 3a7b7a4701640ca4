package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalogue-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListProductsParams filters the console product list
type ListProductsParams struct {
	Page     int
	Limit    int
	Status   *models.ProductStatus
	RubricID *uuid.UUID
}

// BuildSearchText flattens every searchable field of a product into the
// lower-cased text the catalogue search matches against
func BuildSearchText(p *models.Product) string {
	parts := []string{p.Slug}
	if p.Article != nil {
		parts = append(parts, *p.Article)
	}
	if p.BrandSlug != nil {
		parts = append(parts, *p.BrandSlug)
	}
	names := p.Name.Data()
	locales := make([]string, 0, len(names))
	for locale := range names {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		parts = append(parts, names[locale])
	}

	fields := strings.Fields(strings.ToLower(strings.Join(parts, " ")))
	return strings.Join(fields, " ")
}

func productCacheKey(tenantID string, productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:%s", tenantID, productID.String())
}

// invalidateProductCaches drops the cached product and every catalogue page of the tenant
func (r *CatalogueRepository) invalidateProductCaches(ctx context.Context, tenantID string, productID uuid.UUID) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, productCacheKey(tenantID, productID))
	}
	r.InvalidateCatalogue(ctx, tenantID)
}

// Product CRUD Operations

// CreateProduct creates a new product
func (r *CatalogueRepository) CreateProduct(ctx context.Context, tenantID string, product *models.Product) error {
	product.TenantID = tenantID
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}

	// Generated slugs get the first 8 chars of the ID appended for uniqueness
	if product.Slug == "" {
		product.Slug = fmt.Sprintf("%s-%s", GenerateSlug(DefaultName(product.Name.Data())), product.ID.String()[:8])
	}
	product.SearchText = BuildSearchText(product)

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return translateError(err)
	}
	r.InvalidateCatalogue(ctx, tenantID)
	return nil
}

// GetProductByID retrieves a product by ID with caching
func (r *CatalogueRepository) GetProductByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.CacheJSON(ctx, productCacheKey(tenantID, productID), &product, ProductCacheTTL, func() (any, error) {
		var p models.Product
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND id = ?", tenantID, productID).
			First(&p).Error; err != nil {
			return nil, translateError(err)
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs loads products in a single query keyed by ID. Missing IDs are
// absent from the map.
func (r *CatalogueRepository) GetProductsByIDs(ctx context.Context, tenantID string, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	result := make(map[uuid.UUID]*models.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	var products []*models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, productIDs).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// ListProducts retrieves products with filters and pagination
func (r *CatalogueRepository) ListProducts(ctx context.Context, tenantID string, params ListProductsParams) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.RubricID != nil {
		query = query.Where("rubric_id = ?", *params.RubricID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.Limit
	if err := query.Order("created_at DESC").Order("id").
		Offset(offset).Limit(params.Limit).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// UpdateProduct applies a partial update and refreshes the denormalized
// columns of the product's shop products in the same transaction
func (r *CatalogueRepository) UpdateProduct(ctx context.Context, tenantID string, productID uuid.UUID, req *models.UpdateProductRequest, updatedBy *string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error; err != nil {
			return err
		}

		if req.RubricID != nil {
			rubricID, err := uuid.Parse(*req.RubricID)
			if err != nil {
				return err
			}
			product.RubricID = rubricID
		}
		if req.Name != nil {
			product.Name = models.NewTranslations(req.Name)
		}
		if req.Description != nil {
			product.Description = models.NewTranslations(req.Description)
		}
		if req.Slug != nil && *req.Slug != "" {
			product.Slug = GenerateSlug(*req.Slug)
		}
		if req.Article != nil {
			product.Article = req.Article
		}
		if req.BrandSlug != nil {
			product.BrandSlug = emptyToNil(req.BrandSlug)
		}
		if req.CategorySlugs != nil {
			product.CategorySlugs = pq.StringArray(req.CategorySlugs)
		}
		if req.OptionSlugs != nil {
			product.OptionSlugs = pq.StringArray(req.OptionSlugs)
		}
		if req.Priority != nil {
			product.Priority = *req.Priority
		}
		if req.MainImage != nil {
			product.MainImage = req.MainImage
		}
		if req.Metadata != nil {
			product.Metadata = &req.Metadata
		}
		product.SearchText = BuildSearchText(&product)
		product.UpdatedBy = updatedBy
		product.UpdatedAt = time.Now()

		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		return syncShopProducts(tx, &product)
	})
	if err != nil {
		return nil, translateError(err)
	}

	r.invalidateProductCaches(ctx, tenantID, productID)
	return &product, nil
}

// UpdateProductStatus updates product status
func (r *CatalogueRepository) UpdateProductStatus(ctx context.Context, tenantID string, productID uuid.UUID, status models.ProductStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.invalidateProductCaches(ctx, tenantID, productID)
	return nil
}

// DeleteProduct soft deletes a product together with its shop products
func (r *CatalogueRepository) DeleteProduct(ctx context.Context, tenantID string, productID uuid.UUID) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, productID).Delete(&models.Product{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return tx.Where("tenant_id = ? AND product_id = ?", tenantID, productID).
			Delete(&models.ShopProduct{}).Error
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}

	r.invalidateProductCaches(ctx, tenantID, productID)
	return nil
}

// Shop product operations

// UpsertShopProduct creates or revives the shop product for (shop, product)
// and copies the product's filterable columns onto it
func (r *CatalogueRepository) UpsertShopProduct(ctx context.Context, tenantID string, req *models.UpsertShopProductRequest) (*models.ShopProduct, error) {
	shopID, err := uuid.Parse(req.ShopID)
	if err != nil {
		return nil, err
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, err
	}

	var sp models.ShopProduct
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error; err != nil {
			return err
		}

		row := models.ShopProduct{
			ID:        uuid.New(),
			TenantID:  tenantID,
			ShopID:    shopID,
			ProductID: productID,
			Price:     req.Price,
			OldPrice:  req.OldPrice,
			Available: req.Available,
			Status:    models.ProductStatusActive,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if req.Status != nil {
			row.Status = *req.Status
		}
		denormalize(&row, &product)

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "shop_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"price":          row.Price,
				"old_price":      row.OldPrice,
				"available":      row.Available,
				"status":         row.Status,
				"rubric_id":      row.RubricID,
				"product_slug":   row.ProductSlug,
				"brand_slug":     row.BrandSlug,
				"category_slugs": row.CategorySlugs,
				"option_slugs":   row.OptionSlugs,
				"priority":       row.Priority,
				"search_text":    row.SearchText,
				"updated_at":     row.UpdatedAt,
				"deleted_at":     nil,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}

		return tx.Where("tenant_id = ? AND shop_id = ? AND product_id = ?", tenantID, shopID, productID).
			First(&sp).Error
	})
	if err != nil {
		return nil, translateError(err)
	}

	r.InvalidateCatalogue(ctx, tenantID)
	return &sp, nil
}

// GetShopProduct retrieves a shop product by ID
func (r *CatalogueRepository) GetShopProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.ShopProduct, error) {
	var sp models.ShopProduct
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&sp).Error; err != nil {
		return nil, translateError(err)
	}
	return &sp, nil
}

// UpdateShopProduct applies a partial price, stock or status update
func (r *CatalogueRepository) UpdateShopProduct(ctx context.Context, tenantID string, id uuid.UUID, req *models.UpdateShopProductRequest) (*models.ShopProduct, error) {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.OldPrice != nil {
		updates["old_price"] = *req.OldPrice
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	result := r.db.WithContext(ctx).Model(&models.ShopProduct{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	r.InvalidateCatalogue(ctx, tenantID)
	return r.GetShopProduct(ctx, tenantID, id)
}

// DeleteShopProduct soft deletes a shop product
func (r *CatalogueRepository) DeleteShopProduct(ctx context.Context, tenantID string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ShopProduct{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.InvalidateCatalogue(ctx, tenantID)
	return nil
}

// ListShopProductsByProduct returns every shop offer of a product, cheapest first
func (r *CatalogueRepository) ListShopProductsByProduct(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ShopProduct, error) {
	var rows []models.ShopProduct
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("price ASC").Order("shop_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// syncShopProducts copies the product's filterable columns to all its shop products
func syncShopProducts(tx *gorm.DB, product *models.Product) error {
	var row models.ShopProduct
	denormalize(&row, product)
	return tx.Model(&models.ShopProduct{}).
		Where("tenant_id = ? AND product_id = ?", product.TenantID, product.ID).
		Updates(map[string]interface{}{
			"rubric_id":      row.RubricID,
			"product_slug":   row.ProductSlug,
			"brand_slug":     row.BrandSlug,
			"category_slugs": row.CategorySlugs,
			"option_slugs":   row.OptionSlugs,
			"priority":       row.Priority,
			"search_text":    row.SearchText,
			"updated_at":     time.Now(),
		}).Error
}

func denormalize(sp *models.ShopProduct, p *models.Product) {
	sp.RubricID = p.RubricID
	sp.ProductSlug = p.Slug
	sp.BrandSlug = p.BrandSlug
	sp.CategorySlugs = nonNilArray(p.CategorySlugs)
	sp.OptionSlugs = nonNilArray(p.OptionSlugs)
	sp.Priority = p.Priority
	sp.SearchText = p.SearchText
}

func nonNilArray(a pq.StringArray) pq.StringArray {
	if a == nil {
		return pq.StringArray{}
	}
	return a
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// DefaultName picks the english name, then the first name in locale order
func DefaultName(names map[string]string) string {
	if v := names["en"]; v != "" {
		return v
	}
	locales := make([]string, 0, len(names))
	for locale := range names {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		if names[locale] != "" {
			return names[locale]
		}
	}
	return ""
}
