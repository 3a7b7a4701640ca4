package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func importRouter(products *MockProductStore, rubrics *MockTaxonomyStore) *gin.Engine {
	h := NewImportHandler(products, rubrics, "en", nil)
	router := setupRouter()
	router.POST("/products/import", h.ImportProducts)
	router.GET("/products/import/template", h.GetImportTemplate)
	return router
}

func uploadFile(router *gin.Engine, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, _ := mw.CreateFormFile("file", filename)
		part.Write(content)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/products/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeImportResult(t *testing.T, w *httptest.ResponseRecorder) models.ImportResult {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

const importCSV = `rubric,name,name_de,slug,brand,categories,options,priority
wine,Grange,Grange Rotwein,grange,penfolds,"red, dry","color-red,country-australia",10
wine,Hill of Grace,,hill-of-grace,henschke,,color-red,
,,,,,,,
wine,Bin 389,,bin-389,penfolds,,price-100_200,
beer,Pale Ale,,pale-ale,,,,
`

func TestImportProducts_CSV(t *testing.T) {
	products := new(MockProductStore)
	rubrics := new(MockTaxonomyStore)
	wine := &models.Rubric{ID: uuid.New(), Slug: "wine"}
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(wine, nil).Once()
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "beer").Return(nil, repository.ErrNotFound).Once()

	products.On("CreateProduct", mock.Anything, testTenant, mock.MatchedBy(func(p *models.Product) bool {
		return p.Slug == "grange"
	})).Return(nil)
	products.On("CreateProduct", mock.Anything, testTenant, mock.MatchedBy(func(p *models.Product) bool {
		return p.Slug == "hill-of-grace"
	})).Return(fmt.Errorf("%w (idx_products_tenant_slug)", repository.ErrDuplicateSlug))

	w := uploadFile(importRouter(products, rubrics), "products.csv", []byte(importCSV), map[string]string{"skipDuplicates": "true"})
	result := decodeImportResult(t, w)

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 2, result.FailedCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, models.ImportRowError{Row: 5, Column: "options", Code: "INVALID", Message: `"price-100_200" is not an attribute-option pair`}, result.Errors[0])
	assert.Equal(t, 6, result.Errors[1].Row)
	assert.Equal(t, "RUBRIC_NOT_FOUND", result.Errors[1].Code)

	var created *models.Product
	for _, call := range products.Calls {
		if p := call.Arguments.Get(2).(*models.Product); p.Slug == "grange" {
			created = p
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, wine.ID, created.RubricID)
	assert.Equal(t, map[string]string{"en": "Grange", "de": "Grange Rotwein"}, created.Name.Data())
	assert.Equal(t, []string{"red", "dry"}, []string(created.CategorySlugs))
	assert.Equal(t, []string{"color-red", "country-australia"}, []string(created.OptionSlugs))
	assert.Equal(t, 10, created.Priority)
	rubrics.AssertExpectations(t)
}

func TestImportProducts_DuplicateWithoutSkip(t *testing.T) {
	products := new(MockProductStore)
	rubrics := new(MockTaxonomyStore)
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(&models.Rubric{ID: uuid.New()}, nil)
	products.On("CreateProduct", mock.Anything, testTenant, mock.Anything).Return(repository.ErrDuplicateSlug)

	w := uploadFile(importRouter(products, rubrics), "p.csv", []byte("rubric,name\nwine,Grange\n"), nil)
	result := decodeImportResult(t, w)

	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "DUPLICATE", result.Errors[0].Code)
}

func TestImportProducts_ValidateOnly(t *testing.T) {
	products := new(MockProductStore)
	rubrics := new(MockTaxonomyStore)
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(&models.Rubric{ID: uuid.New()}, nil)

	w := uploadFile(importRouter(products, rubrics), "p.csv", []byte("Rubric *,Name *,priority\nwine,Grange,high\nwine,Bin 389,\n"), map[string]string{"validateOnly": "true"})
	result := decodeImportResult(t, w)

	assert.True(t, result.ValidateOnly)
	assert.Equal(t, 0, result.CreatedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "priority", result.Errors[0].Column)
	products.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportProducts_LookupFailureIsRetried(t *testing.T) {
	products := new(MockProductStore)
	rubrics := new(MockTaxonomyStore)
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(nil, errors.New("connection reset")).Once()
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(&models.Rubric{ID: uuid.New()}, nil).Once()
	products.On("CreateProduct", mock.Anything, testTenant, mock.Anything).Return(nil)

	w := uploadFile(importRouter(products, rubrics), "p.csv", []byte("rubric,name\nwine,Grange\nwine,Bin 389\n"), nil)
	result := decodeImportResult(t, w)

	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, "LOOKUP_FAILED", result.Errors[0].Code)
	rubrics.AssertExpectations(t)
}

func TestImportProducts_XLSX(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Notes")
	f.NewSheet("Products")
	f.SetSheetRow("Products", "A1", &[]interface{}{"rubric", "name", "options"})
	f.SetSheetRow("Products", "A2", &[]interface{}{"wine", "Grange", "color-red"})
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	products := new(MockProductStore)
	rubrics := new(MockTaxonomyStore)
	rubrics.On("GetRubricBySlug", mock.Anything, testTenant, "wine").Return(&models.Rubric{ID: uuid.New()}, nil)
	products.On("CreateProduct", mock.Anything, testTenant, mock.MatchedBy(func(p *models.Product) bool {
		return p.Name.Data()["en"] == "Grange" && len(p.OptionSlugs) == 1 && p.OptionSlugs[0] == "color-red"
	})).Return(nil)

	result := decodeImportResult(t, uploadFile(importRouter(products, rubrics), "Products.XLSX", buf.Bytes(), nil))

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CreatedCount)
	products.AssertExpectations(t)
}

func TestImportProducts_RequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		code     string
	}{
		{"missing file", "", "", "FILE_REQUIRED"},
		{"unsupported format", "products.json", "[]", "INVALID_FORMAT"},
		{"header only", "products.csv", "rubric,name\n", "EMPTY_FILE"},
		{"empty csv", "products.csv", "", "PARSE_ERROR"},
		{"broken xlsx", "products.xlsx", "not a zip", "PARSE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := uploadFile(importRouter(new(MockProductStore), new(MockTaxonomyStore)), tt.filename, []byte(tt.content), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestGetImportTemplate(t *testing.T) {
	router := importRouter(new(MockProductStore), new(MockTaxonomyStore))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/import/template?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"rubric", "name", "slug", "article", "brand", "categories", "options", "priority", "mainImage"}, records[0])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/import/template?format=xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rubric", rows[0][0])
	assert.Equal(t, "wine", rows[1][0])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/import/template", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Columns []models.ImportColumn `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Columns, len(models.ProductImportColumns()))
}

func TestImportRowRequest_References(t *testing.T) {
	h := NewImportHandler(nil, nil, "en", nil)

	t.Run("normalized", func(t *testing.T) {
		result := &models.ImportResult{}
		req := h.rowRequest(map[string]string{
			"name":       "Grange",
			"brand":      "Penfolds Wines",
			"categories": "Red Wine, red-wine",
			"options":    "color-Dark Red",
		}, 2, result)

		assert.Empty(t, result.Errors)
		require.NotNil(t, req.BrandSlug)
		assert.Equal(t, "penfolds-wines", *req.BrandSlug)
		assert.Equal(t, []string{"red-wine"}, req.CategorySlugs)
		assert.Equal(t, []string{"color-dark-red"}, req.OptionSlugs)
	})

	t.Run("rejected", func(t *testing.T) {
		result := &models.ImportResult{}
		h.rowRequest(map[string]string{
			"name":       "Grange",
			"brand":      "%%",
			"categories": "/",
			"options":    "brand-x",
		}, 3, result)

		require.Len(t, result.Errors, 3)
		for i, column := range []string{"brand", "categories", "options"} {
			assert.Equal(t, 3, result.Errors[i].Row)
			assert.Equal(t, column, result.Errors[i].Column)
			assert.Equal(t, "INVALID", result.Errors[i].Code)
		}
	})
}
