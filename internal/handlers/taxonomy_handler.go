package handlers

import (
	"context"
	"net/http"

	"catalogue-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaxonomyStore is the rubric, attribute, brand and category storage
type TaxonomyStore interface {
	CreateRubric(ctx context.Context, tenantID string, req *models.CreateRubricRequest) (*models.Rubric, error)
	GetRubricBySlug(ctx context.Context, tenantID, slug string) (*models.Rubric, error)
	ListRubrics(ctx context.Context, tenantID string) ([]models.Rubric, error)
	CreateAttribute(ctx context.Context, tenantID string, req *models.CreateAttributeRequest) (*models.Attribute, error)
	AssignRubricAttribute(ctx context.Context, tenantID string, rubricID uuid.UUID, req *models.AssignRubricAttributeRequest) (*models.RubricAttribute, error)
	GetRubricAttributes(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.RubricAttribute, error)
	CreateBrand(ctx context.Context, tenantID string, req *models.CreateBrandRequest) (*models.Brand, error)
	ListBrands(ctx context.Context, tenantID string) ([]models.Brand, error)
	CreateCategory(ctx context.Context, tenantID string, req *models.CreateCategoryRequest) (*models.Category, error)
	ListCategoriesByRubric(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.Category, error)
}

type TaxonomyHandler struct {
	repo TaxonomyStore
}

func NewTaxonomyHandler(repo TaxonomyStore) *TaxonomyHandler {
	return &TaxonomyHandler{repo: repo}
}

// CreateRubric creates a rubric
func (h *TaxonomyHandler) CreateRubric(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.CreateRubricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	rubric, err := h.repo.CreateRubric(c.Request.Context(), tenantID.(string), &req)
	if err != nil {
		respondError(c, err, "CREATION_FAILED", "Failed to create rubric")
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    rubric,
	})
}

// GetRubrics lists the rubrics of the tenant
func (h *TaxonomyHandler) GetRubrics(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	rubrics, err := h.repo.ListRubrics(c.Request.Context(), tenantID.(string))
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve rubrics")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    rubrics,
	})
}

// GetRubricAttributes returns the attributes bound to a rubric with their options
// GET /api/v1/rubrics/:slug/attributes
func (h *TaxonomyHandler) GetRubricAttributes(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	ctx := c.Request.Context()
	rubric, err := h.repo.GetRubricBySlug(ctx, tenantID.(string), c.Param("slug"))
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve rubric")
		return
	}

	attrs, err := h.repo.GetRubricAttributes(ctx, tenantID.(string), rubric.ID)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve rubric attributes")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    attrs,
	})
}

// AssignRubricAttribute binds an attribute to a rubric
// PUT /api/v1/rubrics/:slug/attributes
func (h *TaxonomyHandler) AssignRubricAttribute(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.AssignRubricAttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	ctx := c.Request.Context()
	rubric, err := h.repo.GetRubricBySlug(ctx, tenantID.(string), c.Param("slug"))
	if err != nil {
		respondError(c, err, "ASSIGN_FAILED", "Failed to retrieve rubric")
		return
	}

	binding, err := h.repo.AssignRubricAttribute(ctx, tenantID.(string), rubric.ID, &req)
	if err != nil {
		respondError(c, err, "ASSIGN_FAILED", "Failed to assign attribute")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    binding,
	})
}

// CreateAttribute creates an attribute with its option tree
func (h *TaxonomyHandler) CreateAttribute(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.CreateAttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	attr, err := h.repo.CreateAttribute(c.Request.Context(), tenantID.(string), &req)
	if err != nil {
		respondError(c, err, "CREATION_FAILED", "Failed to create attribute")
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    attr,
	})
}

// CreateBrand creates a brand
func (h *TaxonomyHandler) CreateBrand(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.CreateBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	brand, err := h.repo.CreateBrand(c.Request.Context(), tenantID.(string), &req)
	if err != nil {
		respondError(c, err, "CREATION_FAILED", "Failed to create brand")
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    brand,
	})
}

// GetBrands lists the brands of the tenant
func (h *TaxonomyHandler) GetBrands(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	brands, err := h.repo.ListBrands(c.Request.Context(), tenantID.(string))
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve brands")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    brands,
	})
}

// CreateCategory creates a category under a rubric
func (h *TaxonomyHandler) CreateCategory(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	category, err := h.repo.CreateCategory(c.Request.Context(), tenantID.(string), &req)
	if err != nil {
		respondError(c, err, "CREATION_FAILED", "Failed to create category")
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    category,
	})
}

// GetRubricCategories lists the category tree rows of a rubric
// GET /api/v1/rubrics/:slug/categories
func (h *TaxonomyHandler) GetRubricCategories(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	ctx := c.Request.Context()
	rubric, err := h.repo.GetRubricBySlug(ctx, tenantID.(string), c.Param("slug"))
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve rubric")
		return
	}

	categories, err := h.repo.ListCategoriesByRubric(ctx, tenantID.(string), rubric.ID)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve categories")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    categories,
	})
}
