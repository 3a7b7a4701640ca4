package models

// ExportFormat represents the file format of a catalogue export
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// IsValid reports whether f is a supported format
func (f ExportFormat) IsValid() bool {
	return f == ExportFormatCSV || f == ExportFormatXLSX
}

// ExportColumn defines a column of the catalogue export sheet
type ExportColumn struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"` // string, number, uuid
	Width       float64 `json:"width"`
}

// CatalogueExportColumns returns the column definitions of a catalogue export
func CatalogueExportColumns() []ExportColumn {
	return []ExportColumn{
		{Name: "productId", Description: "Product UUID", Type: "uuid", Width: 38},
		{Name: "slug", Description: "Product slug", Type: "string", Width: 30},
		{Name: "name", Description: "Localized product name", Type: "string", Width: 40},
		{Name: "brand", Description: "Brand slug", Type: "string", Width: 20},
		{Name: "status", Description: "Publication status", Type: "string", Width: 12},
		{Name: "minPrice", Description: "Lowest shop price (minor units)", Type: "number", Width: 14},
		{Name: "maxPrice", Description: "Highest shop price (minor units)", Type: "number", Width: 14},
		{Name: "shopsCount", Description: "Number of shops selling the product", Type: "number", Width: 12},
	}
}
