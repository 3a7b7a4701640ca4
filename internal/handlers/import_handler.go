package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalogue-service/internal/events"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// MaxImportRows caps the data rows of one import file
const MaxImportRows = 5000

const importSheet = "Products"

// ProductCreator creates imported products
type ProductCreator interface {
	CreateProduct(ctx context.Context, tenantID string, product *models.Product) error
}

// RubricResolver looks up the rubric of an import row
type RubricResolver interface {
	GetRubricBySlug(ctx context.Context, tenantID, slug string) (*models.Rubric, error)
}

type ImportHandler struct {
	products        ProductCreator
	rubrics         RubricResolver
	defaultLocale   string
	eventsPublisher *events.Publisher
}

func NewImportHandler(products ProductCreator, rubrics RubricResolver, defaultLocale string, eventsPublisher *events.Publisher) *ImportHandler {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return &ImportHandler{
		products:        products,
		rubrics:         rubrics,
		defaultLocale:   defaultLocale,
		eventsPublisher: eventsPublisher,
	}
}

// GetImportTemplate returns the import column definitions or an empty sheet
// GET /api/v1/products/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	columns := models.ProductImportColumns()

	switch models.ExportFormat(c.DefaultQuery("format", "json")) {
	case models.ExportFormatCSV:
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")
		w := csv.NewWriter(c.Writer)
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = col.Name
		}
		w.Write(headers)
		w.Flush()
	case models.ExportFormatXLSX:
		h.writeXLSXTemplate(c, columns)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"columns": columns,
		})
	}
}

func (h *ImportHandler) writeXLSXTemplate(c *gin.Context, columns []models.ImportColumn) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", importSheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(importSheet, cell, col.Name)
		if col.Required {
			f.SetCellStyle(importSheet, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(importSheet, cell, cell, headerStyle)
		}
		example, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(importSheet, example, col.Example)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(importSheet, colName, colName, 22)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Orange columns are required. Delete the example row before importing.")
	f.SetCellValue("Instructions", "A4", "Add a name_<locale> column (name_de, name_fr) for every extra translation.")
	f.SetCellValue("Instructions", "A5", "options holds attribute-option pairs such as color-red, separated by commas.")
	f.SetCellValue("Instructions", "A6", "Rubrics, attributes and brands must exist before products are imported.")

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

// ImportProducts creates products from a CSV or Excel file
// POST /api/v1/products/import
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")
	userID, _ := c.Get("user_id")
	start := time.Now()

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		importError(c, "FILE_REQUIRED", "Please upload a CSV or Excel file")
		return
	}
	defer file.Close()

	skipDuplicates := c.DefaultPostForm("skipDuplicates", "false") == "true"
	validateOnly := c.DefaultPostForm("validateOnly", "false") == "true"

	var rows []map[string]string
	switch name := strings.ToLower(header.Filename); {
	case strings.HasSuffix(name, ".csv"):
		rows, err = parseCSV(file)
	case strings.HasSuffix(name, ".xlsx"):
		rows, err = parseXLSX(file)
	default:
		importError(c, "INVALID_FORMAT", "Only CSV and XLSX files are supported")
		return
	}
	if err != nil {
		importError(c, "PARSE_ERROR", err.Error())
		return
	}
	if len(rows) == 0 {
		importError(c, "EMPTY_FILE", "The file contains no data rows")
		return
	}
	if len(rows) > MaxImportRows {
		importError(c, "TOO_MANY_ROWS", fmt.Sprintf("Import files are limited to %d rows", MaxImportRows))
		return
	}

	uid, _ := userID.(string)
	run := &importRun{
		handler:        h,
		ctx:            c.Request.Context(),
		tenantID:       tenantID.(string),
		userID:         uid,
		actor:          actorOf(c),
		skipDuplicates: skipDuplicates,
		rubrics:        make(map[string]*uuid.UUID),
		result:         &models.ImportResult{ValidateOnly: validateOnly, TotalRows: len(rows)},
	}
	for _, row := range rows {
		run.process(row)
	}

	result := run.result
	result.Success = result.FailedCount == 0
	result.ProcessingMs = time.Since(start).Milliseconds()
	c.JSON(http.StatusOK, result)
}

// importRun holds the state of one import request
type importRun struct {
	handler        *ImportHandler
	ctx            context.Context
	tenantID       string
	userID         string
	actor          events.Actor
	skipDuplicates bool
	// rubric slug to ID; nil marks a slug that was not found
	rubrics map[string]*uuid.UUID
	result  *models.ImportResult
}

func (r *importRun) process(row map[string]string) {
	rowNum, _ := strconv.Atoi(row["_row"])
	before := len(r.result.Errors)

	req := r.handler.rowRequest(row, rowNum, r.result)
	rubricID := r.resolveRubric(row["rubric"], rowNum)
	if len(r.result.Errors) > before || rubricID == nil {
		r.result.FailedCount++
		return
	}
	if r.result.ValidateOnly {
		return
	}

	product := newProduct(*rubricID, req, r.userID)
	err := r.handler.products.CreateProduct(r.ctx, r.tenantID, product)
	switch {
	case err == nil:
		r.result.CreatedCount++
		if r.handler.eventsPublisher != nil {
			r.handler.eventsPublisher.PublishProductCreated(r.ctx, product, r.tenantID, r.actor)
		}
	case errors.Is(err, repository.ErrDuplicateSlug) && r.skipDuplicates:
		r.result.SkippedCount++
	case errors.Is(err, repository.ErrDuplicateSlug):
		addImportError(r.result, rowNum, "slug", "DUPLICATE", "A product with this slug already exists")
		r.result.FailedCount++
	default:
		addImportError(r.result, rowNum, "", "CREATE_FAILED", err.Error())
		r.result.FailedCount++
	}
}

func (r *importRun) resolveRubric(slug string, rowNum int) *uuid.UUID {
	if slug == "" {
		addImportError(r.result, rowNum, "rubric", "REQUIRED", "Rubric is required")
		return nil
	}
	id, seen := r.rubrics[slug]
	if !seen {
		rubric, err := r.handler.rubrics.GetRubricBySlug(r.ctx, r.tenantID, slug)
		switch {
		case err == nil:
			id = &rubric.ID
		case errors.Is(err, repository.ErrNotFound):
		default:
			// lookup failures are not cached so later rows retry
			addImportError(r.result, rowNum, "rubric", "LOOKUP_FAILED", err.Error())
			return nil
		}
		r.rubrics[slug] = id
	}
	if id == nil {
		addImportError(r.result, rowNum, "rubric", "RUBRIC_NOT_FOUND", fmt.Sprintf("Rubric %q does not exist", slug))
	}
	return id
}

// rowRequest validates a row and converts it into a create request
func (h *ImportHandler) rowRequest(row map[string]string, rowNum int, result *models.ImportResult) *models.CreateProductRequest {
	req := &models.CreateProductRequest{
		Name:          map[string]string{},
		Slug:          optionalString(row["slug"]),
		Article:       optionalString(row["article"]),
		BrandSlug:     optionalString(row["brand"]),
		CategorySlugs: splitList(row["categories"]),
		MainImage:     optionalString(row["mainimage"]),
	}
	for column, value := range row {
		if locale, ok := strings.CutPrefix(column, "name_"); ok && locale != "" && value != "" {
			req.Name[locale] = value
		}
	}
	if name := row["name"]; name != "" {
		req.Name[h.defaultLocale] = name
	}
	if repository.GenerateSlug(repository.DefaultName(req.Name)) == "" && req.Slug == nil {
		addImportError(result, rowNum, "name", "REQUIRED", "Product name must contain at least one letter or digit")
	}

	if brand, err := normalizeBrandSlug(req.BrandSlug); err != nil {
		addImportError(result, rowNum, "brand", "INVALID", err.Error())
	} else {
		req.BrandSlug = brand
	}
	if categories, err := normalizeCategorySlugs(req.CategorySlugs); err != nil {
		addImportError(result, rowNum, "categories", "INVALID", err.Error())
	} else {
		req.CategorySlugs = categories
	}
	for _, raw := range splitList(row["options"]) {
		slug, err := normalizeOptionSlug(raw)
		if err != nil {
			addImportError(result, rowNum, "options", "INVALID", err.Error())
			continue
		}
		req.OptionSlugs = append(req.OptionSlugs, slug)
	}

	if p := row["priority"]; p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			addImportError(result, rowNum, "priority", "INVALID", "Priority must be a whole number")
		}
		req.Priority = &n
	}
	return req
}

// parseCSV parses a CSV file into rows keyed by lowercased header
func parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	normalizeHeaders(headers)

	var rows []map[string]string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", line, err)
		}
		if row := toRow(headers, record, line); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// parseXLSX parses the Products sheet, or the first sheet, of an Excel file
func parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in Excel file")
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, importSheet) {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) == 0 {
		return nil, errors.New("file must have a header row")
	}

	headers := excelRows[0]
	normalizeHeaders(headers)
	var rows []map[string]string
	for i, record := range excelRows[1:] {
		if row := toRow(headers, record, i+2); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func normalizeHeaders(headers []string) {
	for i := range headers {
		headers[i] = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(headers[i])), " *")
	}
}

// toRow maps a record onto headers; blank records return nil
func toRow(headers, record []string, line int) map[string]string {
	row := make(map[string]string, len(headers)+1)
	blank := true
	for i, value := range record {
		if i >= len(headers) {
			break
		}
		value = strings.TrimSpace(value)
		if value != "" {
			blank = false
		}
		row[headers[i]] = value
	}
	if blank {
		return nil
	}
	row["_row"] = strconv.Itoa(line)
	return row
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func addImportError(result *models.ImportResult, rowNum int, column, code, message string) {
	result.Errors = append(result.Errors, models.ImportRowError{
		Row:     rowNum,
		Column:  column,
		Code:    code,
		Message: message,
	})
}

func importError(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}
