package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"catalogue-service/internal/middleware"
	"catalogue-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Catalogue"

// ExportCatalogue streams the whole match set of a console query as CSV or XLSX
// POST /api/v1/catalogue/export
func (h *CatalogueHandler) ExportCatalogue(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.CatalogueQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}

	format := models.ExportFormat(req.Format)
	if format == "" {
		format = models.ExportFormatXLSX
	}
	if !format.IsValid() {
		validationError(c, "Format must be csv or xlsx", "format")
		return
	}

	query, ok := h.buildQuery(c, &req)
	if !ok {
		return
	}

	cards, err := h.service.Export(c.Request.Context(), tenantID, query)
	if err != nil {
		respondError(c, err, "EXPORT_FAILED", "Failed to export catalogue")
		return
	}

	filename := fmt.Sprintf("catalogue_%s_%s.%s", query.Mode, time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Disposition", "attachment; filename="+filename)

	columns := models.CatalogueExportColumns()
	rows := exportRows(cards)
	if format == models.ExportFormatCSV {
		writeCSV(c, columns, rows)
		return
	}
	if err := writeXLSX(c, columns, rows); err != nil {
		respondError(c, err, "EXPORT_FAILED", "Failed to build export file")
	}
}

// exportRows renders cards in the column order of CatalogueExportColumns
func exportRows(cards []models.CatalogueCard) [][]string {
	rows := make([][]string, len(cards))
	for i, card := range cards {
		rows[i] = []string{
			card.ProductID.String(),
			card.Slug,
			card.Name,
			derefString(card.BrandSlug),
			string(card.Status),
			formatPrice(card.MinPrice),
			formatPrice(card.MaxPrice),
			strconv.Itoa(card.ShopsCount),
		}
	}
	return rows
}

func writeCSV(c *gin.Context, columns []models.ExportColumn, rows [][]string) {
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	_ = writer.Write(headers)
	_ = writer.WriteAll(rows)
}

func writeXLSX(c *gin.Context, columns []models.ExportColumn, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, col.Name)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(exportSheet, colName, colName, col.Width)
	}

	for r, row := range rows {
		for i, value := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			// numbers stay numeric so the sheet can sort and sum them
			if columns[i].Type == "number" && value != "" {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					f.SetCellValue(exportSheet, cell, n)
					continue
				}
			}
			f.SetCellValue(exportSheet, cell, value)
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	return f.Write(c.Writer)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatPrice(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}
