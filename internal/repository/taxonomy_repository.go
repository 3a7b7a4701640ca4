package repository

import (
	"context"
	"fmt"
	"time"

	"catalogue-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Rubric operations

// CreateRubric creates a rubric
func (r *CatalogueRepository) CreateRubric(ctx context.Context, tenantID string, req *models.CreateRubricRequest) (*models.Rubric, error) {
	rubric := &models.Rubric{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Slug:        slugOr(req.Slug, req.Name, GenerateSlug),
		Name:        models.NewTranslations(req.Name),
		Description: models.NewTranslations(req.Description),
		Priority:    req.Priority,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(rubric).Error; err != nil {
		return nil, translateError(err)
	}
	r.invalidateTaxonomyCaches(ctx, tenantID)
	return rubric, nil
}

// GetRubricBySlug retrieves a rubric by slug with caching
func (r *CatalogueRepository) GetRubricBySlug(ctx context.Context, tenantID, slug string) (*models.Rubric, error) {
	var rubric models.Rubric
	cacheKey := fmt.Sprintf("rubric:%s:%s", tenantID, slug)
	err := r.CacheJSON(ctx, cacheKey, &rubric, TaxonomyCacheTTL, func() (any, error) {
		var rb models.Rubric
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND slug = ?", tenantID, slug).
			First(&rb).Error; err != nil {
			return nil, translateError(err)
		}
		return &rb, nil
	})
	if err != nil {
		return nil, err
	}
	return &rubric, nil
}

// ListRubrics returns every rubric of the tenant by priority
func (r *CatalogueRepository) ListRubrics(ctx context.Context, tenantID string) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority DESC").Order("slug").
		Find(&rubrics).Error; err != nil {
		return nil, err
	}
	return rubrics, nil
}

// Attribute operations

// CreateAttribute creates an attribute and its option tree in one transaction
func (r *CatalogueRepository) CreateAttribute(ctx context.Context, tenantID string, req *models.CreateAttributeRequest) (*models.Attribute, error) {
	attr := &models.Attribute{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Slug:        slugOr(req.Slug, req.Name, GenerateAttributeSlug),
		Name:        models.NewTranslations(req.Name),
		Metric:      req.Metric,
		ViewVariant: req.ViewVariant,
		Position:    req.Position,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if attr.ViewVariant == "" {
		attr.ViewVariant = models.AttributeViewMultipleSelect
	}
	if !ValidAttributeSlug(attr.Slug) {
		return nil, fmt.Errorf("%w: attribute %q", ErrInvalidSlug, attr.Slug)
	}

	attr.Options = flattenOptions(attr.ID, nil, req.Options)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(attr).Error; err != nil {
			return err
		}
		if len(attr.Options) == 0 {
			return nil
		}
		return tx.CreateInBatches(&attr.Options, 100).Error
	})
	if err != nil {
		return nil, translateError(err)
	}

	r.invalidateTaxonomyCaches(ctx, tenantID)
	return attr, nil
}

// flattenOptions assigns IDs depth-first so every child row follows its parent
func flattenOptions(attributeID uuid.UUID, parentID *uuid.UUID, reqs []models.CreateOptionRequest) []models.Option {
	var out []models.Option
	for _, req := range reqs {
		opt := models.Option{
			ID:          uuid.New(),
			AttributeID: attributeID,
			ParentID:    parentID,
			Slug:        slugOr(req.Slug, req.Name, GenerateSlug),
			Name:        models.NewTranslations(req.Name),
			Color:       req.Color,
			Priority:    req.Priority,
		}
		out = append(out, opt)
		id := opt.ID
		out = append(out, flattenOptions(attributeID, &id, req.Children)...)
	}
	return out
}

// AssignRubricAttribute binds an attribute to a rubric, updating the display
// settings when the binding already exists
func (r *CatalogueRepository) AssignRubricAttribute(ctx context.Context, tenantID string, rubricID uuid.UUID, req *models.AssignRubricAttributeRequest) (*models.RubricAttribute, error) {
	attributeID, err := uuid.Parse(req.AttributeID)
	if err != nil {
		return nil, err
	}
	binding := &models.RubricAttribute{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		RubricID:              rubricID,
		AttributeID:           attributeID,
		ShowInCatalogueFilter: true,
		Position:              req.Position,
	}
	if req.ShowInCatalogueFilter != nil {
		binding.ShowInCatalogueFilter = *req.ShowInCatalogueFilter
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Rubric{}).Where("tenant_id = ? AND id = ?", tenantID, rubricID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&models.Attribute{}).Where("tenant_id = ? AND id = ?", tenantID, attributeID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rubric_id"}, {Name: "attribute_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"show_in_catalogue_filter", "position"}),
		}).Create(binding).Error
	})
	if err != nil {
		return nil, translateError(err)
	}

	r.invalidateTaxonomyCaches(ctx, tenantID)
	return binding, nil
}

// GetRubricAttributes loads the attributes bound to a rubric with their options
func (r *CatalogueRepository) GetRubricAttributes(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.RubricAttribute, error) {
	var bindings []models.RubricAttribute
	cacheKey := fmt.Sprintf("rubric_attributes:%s:%s", tenantID, rubricID.String())
	err := r.CacheJSON(ctx, cacheKey, &bindings, TaxonomyCacheTTL, func() (any, error) {
		var rows []models.RubricAttribute
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND rubric_id = ?", tenantID, rubricID).
			Preload("Attribute").
			Preload("Attribute.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order("priority DESC").Order("slug")
			}).
			Order("position ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return bindings, nil
}

// Brand operations

// CreateBrand creates a brand
func (r *CatalogueRepository) CreateBrand(ctx context.Context, tenantID string, req *models.CreateBrandRequest) (*models.Brand, error) {
	brand := &models.Brand{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Slug:      slugOr(req.Slug, req.Name, GenerateSlug),
		Name:      models.NewTranslations(req.Name),
		LogoURL:   req.LogoURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		return nil, translateError(err)
	}
	r.InvalidateCatalogue(ctx, tenantID)
	return brand, nil
}

// ListBrands returns every brand of the tenant
func (r *CatalogueRepository) ListBrands(ctx context.Context, tenantID string) ([]models.Brand, error) {
	var brands []models.Brand
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("slug").
		Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

// GetBrandsBySlugs loads the brands named by slugs
func (r *CatalogueRepository) GetBrandsBySlugs(ctx context.Context, tenantID string, slugs []string) ([]models.Brand, error) {
	if len(slugs) == 0 {
		return []models.Brand{}, nil
	}
	var brands []models.Brand
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND slug IN ?", tenantID, slugs).
		Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

// Category operations

// CreateCategory creates a category inside a rubric
func (r *CatalogueRepository) CreateCategory(ctx context.Context, tenantID string, req *models.CreateCategoryRequest) (*models.Category, error) {
	rubricID, err := uuid.Parse(req.RubricID)
	if err != nil {
		return nil, err
	}
	category := &models.Category{
		ID:        uuid.New(),
		TenantID:  tenantID,
		RubricID:  rubricID,
		Slug:      slugOr(req.Slug, req.Name, GenerateSlug),
		Name:      models.NewTranslations(req.Name),
		Priority:  req.Priority,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if req.ParentID != nil {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			return nil, err
		}
		category.ParentID = &parentID
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, translateError(err)
	}
	r.InvalidateCatalogue(ctx, tenantID)
	return category, nil
}

// ListCategoriesByRubric returns the categories of a rubric
func (r *CatalogueRepository) ListCategoriesByRubric(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rubric_id = ?", tenantID, rubricID).
		Order("priority DESC").Order("slug").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// slugOr normalizes an explicit slug or derives one from the default name
func slugOr(slug *string, name map[string]string, gen func(string) string) string {
	if slug != nil && *slug != "" {
		return gen(*slug)
	}
	return gen(DefaultName(name))
}
