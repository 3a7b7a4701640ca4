package handlers

import (
	"context"
	"net/http"
	"strings"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/middleware"
	"catalogue-service/internal/models"
	"catalogue-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogueService is the catalogue query surface used by the handlers
type CatalogueService interface {
	GetCatalogue(ctx context.Context, tenantID string, q services.CatalogueQuery) (*models.CatalogueResult, error)
	Export(ctx context.Context, tenantID string, q services.CatalogueQuery) ([]models.CatalogueCard, error)
	DecodeSegments(mode models.CatalogueMode, segments []string) (*filters.Selection, error)
}

type CatalogueHandler struct {
	service  CatalogueService
	basePath string
}

// NewCatalogueHandler creates a catalogue handler. basePath prefixes the
// storefront paths returned in results (e.g. "/catalogue").
func NewCatalogueHandler(service CatalogueService, basePath string) *CatalogueHandler {
	return &CatalogueHandler{service: service, basePath: basePath}
}

// GetStorefrontCatalogue serves the public catalogue page for a filter path
// GET /api/v1/storefront/catalogue/*filters
func (h *CatalogueHandler) GetStorefrontCatalogue(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	query := services.CatalogueQuery{
		Mode:     models.CatalogueModeStorefront,
		Segments: splitFilterPath(escapedWildcard(c, "filters")),
		Search:   strings.TrimSpace(c.Query("q")),
		Locale:   middleware.GetLocale(c),
		BasePath: h.basePath,
	}

	result, err := h.service.GetCatalogue(c.Request.Context(), tenantID, query)
	if err != nil {
		respondError(c, err, "CATALOGUE_FAILED", "Failed to load catalogue")
		return
	}

	c.JSON(http.StatusOK, models.CatalogueResponse{
		Success: true,
		Data:    result,
	})
}

// QueryCatalogue runs a console catalogue query
// POST /api/v1/catalogue/query
func (h *CatalogueHandler) QueryCatalogue(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.CatalogueQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	query, ok := h.buildQuery(c, &req)
	if !ok {
		return
	}

	result, err := h.service.GetCatalogue(c.Request.Context(), tenantID, query)
	if err != nil {
		respondError(c, err, "CATALOGUE_FAILED", "Failed to query catalogue")
		return
	}

	c.JSON(http.StatusOK, models.CatalogueResponse{
		Success: true,
		Data:    result,
	})
}

// DecodeFilters parses a filter path and returns the selection it encodes
// GET /api/v1/catalogue/filters/decode?path=...&mode=...
func (h *CatalogueHandler) DecodeFilters(c *gin.Context) {
	mode := models.CatalogueMode(c.DefaultQuery("mode", string(models.CatalogueModeStorefront)))
	if !mode.IsValid() {
		validationError(c, "Unknown catalogue mode", "mode")
		return
	}

	sel, err := h.service.DecodeSegments(mode, splitFilterPath(c.Query("path")))
	if err != nil {
		respondError(c, err, "DECODE_FAILED", "Failed to decode filters")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"selection": sel,
			"segments":  sel.Segments(),
			"path":      sel.Path(h.basePath),
		},
	})
}

// buildQuery validates a console request body. It writes the error response
// and returns false when the body is invalid.
func (h *CatalogueHandler) buildQuery(c *gin.Context, req *models.CatalogueQueryRequest) (services.CatalogueQuery, bool) {
	query := services.CatalogueQuery{
		Mode:     req.Mode,
		Rubric:   req.Rubric,
		Segments: req.Segments,
		Search:   strings.TrimSpace(req.Search),
		Locale:   req.Locale,
		BasePath: h.basePath,
	}
	if query.Mode == "" {
		query.Mode = models.CatalogueModeConsoleProducts
	}
	if !query.Mode.IsValid() {
		validationError(c, "Unknown catalogue mode", "mode")
		return query, false
	}
	if query.Locale == "" {
		query.Locale = middleware.GetLocale(c)
	}

	if req.ShopID != nil && *req.ShopID != "" {
		shopID, err := uuid.Parse(*req.ShopID)
		if err != nil {
			validationError(c, "Invalid shop ID format", "shopId")
			return query, false
		}
		query.ShopID = &shopID
	}
	for _, raw := range req.ExcludedIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			validationError(c, "Invalid excluded product ID format", "excludedIds")
			return query, false
		}
		query.ExcludedIDs = append(query.ExcludedIDs, id)
	}
	return query, true
}

// escapedWildcard returns the wildcard param still percent-encoded. Gin hands
// out decoded params, so an escaped "/" or "%" in a value would otherwise be
// decoded before filters.Parse unescapes each segment.
func escapedWildcard(c *gin.Context, name string) string {
	prefix := strings.TrimSuffix(c.FullPath(), "*"+name)
	escaped := c.Request.URL.EscapedPath()
	if prefix == c.FullPath() || !strings.HasPrefix(escaped, prefix) {
		return c.Param(name)
	}
	return escaped[len(prefix):]
}

// splitFilterPath splits "/rubric-wine/color-red" into segments
func splitFilterPath(path string) []string {
	path = strings.Trim(path, filters.PathSeparator)
	if path == "" {
		return nil
	}
	return strings.Split(path, filters.PathSeparator)
}
