package handlers

import (
	"context"
	"net/http"

	"catalogue-service/internal/events"
	"catalogue-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ShopProductStore is the shop product storage used by ShopProductsHandler
type ShopProductStore interface {
	UpsertShopProduct(ctx context.Context, tenantID string, req *models.UpsertShopProductRequest) (*models.ShopProduct, error)
	GetShopProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.ShopProduct, error)
	UpdateShopProduct(ctx context.Context, tenantID string, id uuid.UUID, req *models.UpdateShopProductRequest) (*models.ShopProduct, error)
	DeleteShopProduct(ctx context.Context, tenantID string, id uuid.UUID) error
	ListShopProductsByProduct(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ShopProduct, error)
}

// ShopProductsHandler manages the per-shop offers of products
type ShopProductsHandler struct {
	repo            ShopProductStore
	eventsPublisher *events.Publisher
}

func NewShopProductsHandler(repo ShopProductStore, eventsPublisher *events.Publisher) *ShopProductsHandler {
	return &ShopProductsHandler{
		repo:            repo,
		eventsPublisher: eventsPublisher,
	}
}

// UpsertShopProduct creates or revives a shop's offer for a product
// PUT /api/v1/shop-products
func (h *ShopProductsHandler) UpsertShopProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	var req models.UpsertShopProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		validationError(c, "Unknown shop product status", "status")
		return
	}

	sp, err := h.repo.UpsertShopProduct(c.Request.Context(), tenantID.(string), &req)
	if err != nil {
		respondError(c, err, "UPSERT_FAILED", "Failed to save shop product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishShopProduct(c.Request.Context(), events.ShopProductUpserted, sp, actorOf(c))
	}

	c.JSON(http.StatusOK, models.ShopProductResponse{
		Success: true,
		Data:    sp,
	})
}

// GetShopProduct returns one shop product
func (h *ShopProductsHandler) GetShopProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "shop product")
		return
	}

	sp, err := h.repo.GetShopProduct(c.Request.Context(), tenantID.(string), id)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve shop product")
		return
	}

	c.JSON(http.StatusOK, models.ShopProductResponse{
		Success: true,
		Data:    sp,
	})
}

// UpdateShopProduct changes price, stock or status of a shop product
func (h *ShopProductsHandler) UpdateShopProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "shop product")
		return
	}

	var req models.UpdateShopProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		validationError(c, "Unknown shop product status", "status")
		return
	}

	sp, err := h.repo.UpdateShopProduct(c.Request.Context(), tenantID.(string), id, &req)
	if err != nil {
		respondError(c, err, "UPDATE_FAILED", "Failed to update shop product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishShopProduct(c.Request.Context(), events.ShopProductUpdated, sp, actorOf(c))
	}

	c.JSON(http.StatusOK, models.ShopProductResponse{
		Success: true,
		Data:    sp,
		Message: stringPtr("Shop product updated successfully"),
	})
}

// DeleteShopProduct removes a shop's offer
func (h *ShopProductsHandler) DeleteShopProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "shop product")
		return
	}

	ctx := c.Request.Context()
	sp, err := h.repo.GetShopProduct(ctx, tenantID.(string), id)
	if err != nil {
		respondError(c, err, "DELETE_FAILED", "Failed to delete shop product")
		return
	}
	if err := h.repo.DeleteShopProduct(ctx, tenantID.(string), id); err != nil {
		respondError(c, err, "DELETE_FAILED", "Failed to delete shop product")
		return
	}

	if h.eventsPublisher != nil {
		h.eventsPublisher.PublishShopProduct(ctx, events.ShopProductDeleted, sp, actorOf(c))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Shop product deleted successfully",
	})
}

// GetProductShopProducts lists the shop offers of a product, cheapest first
// GET /api/v1/products/:id/shop-products
func (h *ShopProductsHandler) GetProductShopProducts(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	items, err := h.repo.ListShopProductsByProduct(c.Request.Context(), tenantID.(string), productID)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve shop products")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    items,
	})
}
