package handlers

import (
	"context"
	"net/http"
	"strconv"

	"catalogue-service/internal/events"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProductStore is the product storage used by ProductsHandler
type ProductStore interface {
	CreateProduct(ctx context.Context, tenantID string, product *models.Product) error
	GetProductByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, tenantID string, params repository.ListProductsParams) ([]models.Product, int64, error)
	UpdateProduct(ctx context.Context, tenantID string, productID uuid.UUID, req *models.UpdateProductRequest, updatedBy *string) (*models.Product, error)
	UpdateProductStatus(ctx context.Context, tenantID string, productID uuid.UUID, status models.ProductStatus) error
	DeleteProduct(ctx context.Context, tenantID string, productID uuid.UUID) error
}

type ProductsHandler struct {
	repo            ProductStore
	eventsPublisher *events.Publisher
}

func NewProductsHandler(repo ProductStore, eventsPublisher *events.Publisher) *ProductsHandler {
	return &ProductsHandler{
		repo:            repo,
		eventsPublisher: eventsPublisher,
	}
}

// CreateProduct creates a new product
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")
	userID, _ := c.Get("user_id")

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	rubricID, err := uuid.Parse(req.RubricID)
	if err != nil {
		validationError(c, "Invalid rubric ID format", "rubricId")
		return
	}
	if repository.GenerateSlug(repository.DefaultName(req.Name)) == "" && (req.Slug == nil || *req.Slug == "") {
		validationError(c, "Product name must contain at least one letter or digit", "name")
		return
	}
	if err := normalizeProductRefs(&req.BrandSlug, &req.CategorySlugs, &req.OptionSlugs); err != nil {
		invalidReference(c, err)
		return
	}

	uid, _ := userID.(string)
	product := newProduct(rubricID, &req, uid)

	if err := h.repo.CreateProduct(c.Request.Context(), tenantID.(string), product); err != nil {
		respondError(c, err, "CREATION_FAILED", "Failed to create product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishProductCreated(c.Request.Context(), product, tenantID.(string), actorOf(c))
	}

	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    product,
		Message: stringPtr("Product created successfully"),
	})
}

// newProduct builds the product row of a create request
func newProduct(rubricID uuid.UUID, req *models.CreateProductRequest, userID string) *models.Product {
	product := &models.Product{
		RubricID:      rubricID,
		Name:          models.NewTranslations(req.Name),
		Description:   models.NewTranslations(req.Description),
		Article:       req.Article,
		CategorySlugs: pq.StringArray(nonNilStrings(req.CategorySlugs)),
		OptionSlugs:   pq.StringArray(nonNilStrings(req.OptionSlugs)),
		MainImage:     req.MainImage,
	}
	if req.Slug != nil {
		product.Slug = repository.GenerateSlug(*req.Slug)
	}
	if req.BrandSlug != nil && *req.BrandSlug != "" {
		product.BrandSlug = req.BrandSlug
	}
	if req.Metadata != nil {
		product.Metadata = &req.Metadata
	}
	if req.Priority != nil {
		product.Priority = *req.Priority
	}
	if userID != "" {
		product.CreatedBy = &userID
		product.UpdatedBy = &userID
	}
	return product
}

// GetProducts lists products with pagination
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	params := repository.ListProductsParams{Page: page, Limit: limit}
	if status := c.Query("status"); status != "" {
		s := models.ProductStatus(status)
		if !s.IsValid() {
			validationError(c, "Unknown product status", "status")
			return
		}
		params.Status = &s
	}
	if rubric := c.Query("rubricId"); rubric != "" {
		rubricID, err := uuid.Parse(rubric)
		if err != nil {
			invalidID(c, "rubric")
			return
		}
		params.RubricID = &rubricID
	}

	products, total, err := h.repo.ListProducts(c.Request.Context(), tenantID.(string), params)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve products")
		return
	}

	pagination := models.NewPaginationInfo(page, limit, total)
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: &pagination,
	})
}

// GetProduct retrieves a single product by ID
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), tenantID.(string), productID)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve product")
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// UpdateProduct applies a partial update to a product
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")
	userID, _ := c.Get("user_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}
	if err := normalizeProductRefs(&req.BrandSlug, &req.CategorySlugs, &req.OptionSlugs); err != nil {
		invalidReference(c, err)
		return
	}

	var updatedBy *string
	if uid, ok := userID.(string); ok && uid != "" {
		updatedBy = &uid
	}

	product, err := h.repo.UpdateProduct(c.Request.Context(), tenantID.(string), productID, &req, updatedBy)
	if err != nil {
		respondError(c, err, "UPDATE_FAILED", "Failed to update product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishProductUpdated(c.Request.Context(), product, changedFields(&req), tenantID.(string), actorOf(c))
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
		Message: stringPtr("Product updated successfully"),
	})
}

// UpdateProductStatus updates product status
func (h *ProductsHandler) UpdateProductStatus(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	var req models.UpdateProductStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}
	if !req.Status.IsValid() {
		validationError(c, "Unknown product status", "status")
		return
	}

	ctx := c.Request.Context()
	product, err := h.repo.GetProductByID(ctx, tenantID.(string), productID)
	if err != nil {
		respondError(c, err, "UPDATE_FAILED", "Failed to update product status")
		return
	}
	oldStatus := product.Status

	if err := h.repo.UpdateProductStatus(ctx, tenantID.(string), productID, req.Status); err != nil {
		respondError(c, err, "UPDATE_FAILED", "Failed to update product status")
		return
	}
	product.Status = req.Status

	if h.eventsPublisher != nil && oldStatus != req.Status {
		h.eventsPublisher.PublishProductStatusChanged(ctx, product, oldStatus, tenantID.(string), actorOf(c))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product status updated successfully",
	})
}

// DeleteProduct soft deletes a product and its shop products
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	ctx := c.Request.Context()
	product, err := h.repo.GetProductByID(ctx, tenantID.(string), productID)
	if err != nil {
		respondError(c, err, "DELETE_FAILED", "Failed to delete product")
		return
	}

	if err := h.repo.DeleteProduct(ctx, tenantID.(string), productID); err != nil {
		respondError(c, err, "DELETE_FAILED", "Failed to delete product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishProductDeleted(ctx, product, tenantID.(string), actorOf(c))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product deleted successfully",
	})
}

// actorOf extracts the acting user for event payloads
func actorOf(c *gin.Context) events.Actor {
	actor := gosharedmw.GetActorInfo(c)
	return events.Actor{
		ID:    actor.ActorID,
		Name:  actor.ActorName,
		Email: actor.ActorEmail,
	}
}

// changedFields lists the fields set in an update request
func changedFields(req *models.UpdateProductRequest) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(req.RubricID != nil, "rubricId")
	add(req.Name != nil, "name")
	add(req.Description != nil, "description")
	add(req.Slug != nil, "slug")
	add(req.Article != nil, "article")
	add(req.BrandSlug != nil, "brandSlug")
	add(req.CategorySlugs != nil, "categorySlugs")
	add(req.OptionSlugs != nil, "optionSlugs")
	add(req.Priority != nil, "priority")
	add(req.MainImage != nil, "mainImage")
	add(req.Metadata != nil, "metadata")
	return fields
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
