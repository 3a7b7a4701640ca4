package models

import (
	"github.com/google/uuid"
)

// CatalogueMode selects the source table and extra stages of a catalogue query
type CatalogueMode string

const (
	// CatalogueModeStorefront is the public catalogue over published, in-stock shop products
	CatalogueModeStorefront CatalogueMode = "catalogue"
	// CatalogueModeConsoleProducts is the CMS product picker over all products
	CatalogueModeConsoleProducts CatalogueMode = "console_products"
	// CatalogueModePromoProducts lists shop products of one shop for promo assignment
	CatalogueModePromoProducts CatalogueMode = "promo_products"
	// CatalogueModeShopProducts lists products not yet sold by one shop
	CatalogueModeShopProducts CatalogueMode = "shop_products"
)

// IsValid reports whether m is a known mode
func (m CatalogueMode) IsValid() bool {
	switch m {
	case CatalogueModeStorefront, CatalogueModeConsoleProducts, CatalogueModePromoProducts, CatalogueModeShopProducts:
		return true
	}
	return false
}

// CatalogueQueryRequest is the console body for POST /catalogue/query and /catalogue/export
type CatalogueQueryRequest struct {
	Mode        CatalogueMode `json:"mode"`
	Rubric      string        `json:"rubric,omitempty"`
	Segments    []string      `json:"segments,omitempty"`
	Search      string        `json:"search,omitempty"`
	ShopID      *string       `json:"shopId,omitempty" binding:"omitempty,uuid"`
	ExcludedIDs []string      `json:"excludedIds,omitempty" binding:"omitempty,dive,uuid"`
	Locale      string        `json:"locale,omitempty"`
	Format      string        `json:"format,omitempty"`
}

// CatalogueCard is one entry of the catalogue result list.
// Prices are nil when the source has no price column.
type CatalogueCard struct {
	ProductID  uuid.UUID     `json:"productId"`
	Slug       string        `json:"slug"`
	Name       string        `json:"name"`
	MainImage  *string       `json:"mainImage,omitempty"`
	BrandSlug  *string       `json:"brandSlug,omitempty"`
	Status     ProductStatus `json:"status"`
	MinPrice   *int64        `json:"minPrice,omitempty"`
	MaxPrice   *int64        `json:"maxPrice,omitempty"`
	ShopsCount int           `json:"shopsCount"`
}

// FilterOption is a node of an attribute's option tree or of the category tree
type FilterOption struct {
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Color        *string        `json:"color,omitempty"`
	Counter      int64          `json:"counter"`
	Selected     bool           `json:"selected"`
	NextSegments []string       `json:"nextSegments"`
	NextPath     string         `json:"nextPath"`
	Children     []FilterOption `json:"children,omitempty"`
}

// FilterAttribute is an attribute block of the filter panel
type FilterAttribute struct {
	Slug          string               `json:"slug"`
	Name          string               `json:"name"`
	Metric        *string              `json:"metric,omitempty"`
	ViewVariant   AttributeViewVariant `json:"viewVariant"`
	Position      int                  `json:"position"`
	Selected      bool                 `json:"selected"`
	ClearSegments []string             `json:"clearSegments,omitempty"`
	Options       []FilterOption       `json:"options"`
}

// PriceBucket is one histogram bin; From is inclusive, To exclusive
type PriceBucket struct {
	From    int64 `json:"from"`
	To      int64 `json:"to"`
	Counter int64 `json:"counter"`
}

// PriceFacet describes the price range of the match set ignoring the price filter
type PriceFacet struct {
	Min       int64         `json:"min"`
	Max       int64         `json:"max"`
	From      *int64        `json:"from,omitempty"`
	To        *int64        `json:"to,omitempty"`
	Histogram []PriceBucket `json:"histogram"`
}

// SelectedFilter is an active filter chip with the segments that remove it
type SelectedFilter struct {
	Attribute     string   `json:"attribute"`
	AttributeName string   `json:"attributeName"`
	Value         string   `json:"value"`
	Name          string   `json:"name"`
	ClearSegments []string `json:"clearSegments"`
	ClearPath     string   `json:"clearPath"`
}

// RubricSummary is the localized rubric header of a catalogue result
type RubricSummary struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// CatalogueSort echoes the effective sort
type CatalogueSort struct {
	By  string `json:"by"`
	Dir string `json:"dir"`
}

// CatalogueResult is the complete answer of one catalogue query
type CatalogueResult struct {
	Mode             CatalogueMode     `json:"mode"`
	Rubric           *RubricSummary    `json:"rubric,omitempty"`
	Search           string            `json:"search,omitempty"`
	Segments         []string          `json:"segments"`
	Sort             CatalogueSort     `json:"sort"`
	Cards            []CatalogueCard   `json:"cards"`
	Pagination       PaginationInfo    `json:"pagination"`
	NextPath         *string           `json:"nextPath,omitempty"`
	PrevPath         *string           `json:"prevPath,omitempty"`
	Attributes       []FilterAttribute `json:"attributes"`
	Brands           []FilterOption    `json:"brands"`
	Categories       []FilterOption    `json:"categories"`
	Prices           *PriceFacet       `json:"prices,omitempty"`
	SelectedFilters  []SelectedFilter  `json:"selectedFilters"`
	ClearAllSegments []string          `json:"clearAllSegments"`
	ClearAllPath     string            `json:"clearAllPath"`
	BasePath         string            `json:"basePath"`
}

type CatalogueResponse struct {
	Success bool             `json:"success"`
	Data    *CatalogueResult `json:"data"`
	Message *string          `json:"message,omitempty"`
}

type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// NewPaginationInfo derives page counters from total and page size
func NewPaginationInfo(page, limit int, total int64) PaginationInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ShopProductResponse struct {
	Success bool         `json:"success"`
	Data    *ShopProduct `json:"data"`
	Message *string      `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
