package models

// ImportColumn defines a column of the product import sheet
type ImportColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Example     string `json:"example"`
}

// ProductImportColumns returns the columns accepted by the product import.
// Localized names use one "name_<locale>" column per locale.
func ProductImportColumns() []ImportColumn {
	return []ImportColumn{
		{Name: "rubric", Description: "Rubric slug", Required: true, Example: "wine"},
		{Name: "name", Description: "Product name in the default locale", Required: true, Example: "Grange Shiraz"},
		{Name: "slug", Description: "Product slug, generated from the name when empty", Example: "grange-2015"},
		{Name: "article", Description: "Article number", Example: "ART-001"},
		{Name: "brand", Description: "Brand slug", Example: "penfolds"},
		{Name: "categories", Description: "Comma-separated category slugs", Example: "red,dry"},
		{Name: "options", Description: "Comma-separated attribute-option segments", Example: "color-red,country-australia"},
		{Name: "priority", Description: "Catalogue priority", Example: "10"},
		{Name: "mainImage", Description: "Main image URL", Example: "https://cdn.example.com/grange.jpg"},
	}
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	ValidateOnly bool             `json:"validateOnly"`
	TotalRows    int              `json:"totalRows"`
	CreatedCount int              `json:"createdCount"`
	SkippedCount int              `json:"skippedCount"`
	FailedCount  int              `json:"failedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	ProcessingMs int64            `json:"processingMs"`
}
